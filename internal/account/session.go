package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrUnknownCustomer = errors.New("customer does not exist")
	ErrMissingName     = errors.New("first and last name are required")
)

// Info is the identity the table checks out with.
type Info struct {
	TableNumber   int    `json:"table_number"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Verified      bool   `json:"verified"`
}

// Session holds the table number and the customer identifier of the kiosk.
type Session struct {
	dir Directory

	mu    sync.RWMutex
	table int
	email string
	known bool
}

// NewSession starts a session for table. A preset email is used as is, without verification.
func NewSession(table int, email string, dir Directory) *Session {
	return &Session{dir: dir, table: table, email: normalizeEmail(email)}
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{TableNumber: s.table, CustomerEmail: s.email, Verified: s.known}
}

// Login identifies the table with an existing customer.
func (s *Session) Login(ctx context.Context, email string) (Info, error) {
	email, err := validEmail(email)
	if err != nil {
		return s.Info(), err
	}

	exists, err := s.dir.Exists(ctx, email)
	if err != nil {
		return s.Info(), err
	}
	if !exists {
		return s.Info(), fmt.Errorf("%w: %s", ErrUnknownCustomer, email)
	}

	s.set(email)
	return s.Info(), nil
}

// Register creates the customer and identifies the table with it.
func (s *Session) Register(ctx context.Context, c Customer) (Info, error) {
	email, err := validEmail(c.Email)
	if err != nil {
		return s.Info(), err
	}
	c.Email = email
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	if c.FirstName == "" || c.LastName == "" {
		return s.Info(), ErrMissingName
	}

	if err := s.dir.CreateCustomer(ctx, c); err != nil {
		return s.Info(), err
	}

	s.set(email)
	return s.Info(), nil
}

func (s *Session) set(email string) {
	s.mu.Lock()
	s.email = email
	s.known = true
	s.mu.Unlock()
}

func validEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
