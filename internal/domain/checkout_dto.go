package domain

// CheckoutRequest is the frozen input of one checkout attempt.
type CheckoutRequest struct {
	Cart               Cart
	TableNumber        int
	CustomerIdentifier string
}

// NewCheckoutRequest snapshots cart so later cart mutations cannot leak into an in-flight request.
func NewCheckoutRequest(cart Cart, tableNumber int, customer string) CheckoutRequest {
	return CheckoutRequest{
		Cart:               cart.Clone(),
		TableNumber:        tableNumber,
		CustomerIdentifier: customer,
	}
}
