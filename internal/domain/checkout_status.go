package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle                 CheckoutStatus = "IDLE"
	CheckoutStatusSubmitting           CheckoutStatus = "SUBMITTING"
	CheckoutStatusAwaitingConfirmation CheckoutStatus = "AWAITING_CONFIRMATION"
	CheckoutStatusSucceeded            CheckoutStatus = "SUCCEEDED"
	CheckoutStatusFailed               CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSucceeded || s == CheckoutStatusFailed
}

// AcceptsSubmit reports whether a new checkout may start from s.
func (s CheckoutStatus) AcceptsSubmit() bool {
	return s == CheckoutStatusIdle || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// Succeeded -> Submitting covers a refilled cart submitted before the automatic reset.
var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:                 {CheckoutStatusSubmitting},
	CheckoutStatusSubmitting:           {CheckoutStatusAwaitingConfirmation, CheckoutStatusFailed, CheckoutStatusIdle},
	CheckoutStatusAwaitingConfirmation: {CheckoutStatusSucceeded, CheckoutStatusFailed, CheckoutStatusIdle},
	CheckoutStatusSucceeded:            {CheckoutStatusIdle, CheckoutStatusSubmitting},
	CheckoutStatusFailed:               {CheckoutStatusSubmitting, CheckoutStatusIdle},
}

// CanTransitionTo reports whether the checkout state machine allows from -> to.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
