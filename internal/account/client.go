package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/table_order/internal/backend"
)

const (
	loginPath          = "/login"
	createCustomerPath = "/createCustomer"
)

// Customer is a guest registering at the table.
type Customer struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

// Directory looks up and registers customers.
type Directory interface {
	Exists(ctx context.Context, email string) (bool, error)
	CreateCustomer(ctx context.Context, c Customer) error
}

type Client struct {
	api *backend.Client
}

func NewClient(api *backend.Client) *Client {
	return &Client{api: api}
}

// Exists reports whether email belongs to a known customer.
// The backend answers 201 for a known customer and 500 with a "message" for an unknown one.
func (c *Client) Exists(ctx context.Context, email string) (bool, error) {
	status, err := c.api.Do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   loginPath,
		Query:  url.Values{"email": {email}},
	}, nil)
	if err == nil {
		return status == http.StatusCreated || status == http.StatusOK, nil
	}

	if IsUnknownCustomerAnswer(err) {
		return false, nil
	}
	return false, fmt.Errorf("login %s: %w", email, err)
}

// IsUnknownCustomerAnswer reports whether err is the backend's regular "unknown customer" reply
// to a login lookup, which carries a "message" and no "error".
func IsUnknownCustomerAnswer(err error) bool {
	var se *backend.StatusError
	return errors.As(err, &se) && se.ServerError == "" && se.ServerMessage != ""
}

func (c *Client) CreateCustomer(ctx context.Context, customer Customer) error {
	if err := c.api.Post(ctx, createCustomerPath, customer, nil); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}
