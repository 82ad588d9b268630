package payment

import (
	"errors"
	"fmt"

	"github.com/kavexa/storefront/internal/validate"
)

// Customer carries the payer identity forwarded to a gateway.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// LineItem is a single purchasable line in a payment request.
type LineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // Minor currency units
	Quantity  int64  `json:"quantity"`
}

// Request is the canonical payment request handed to a gateway adapter.
// Amounts are integer minor currency units end to end; conversion to a
// provider's own representation happens inside the adapter.
type Request struct {
	OrderID     string     `json:"order_id"`
	PaymentID   string     `json:"payment_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"` // ISO 4217
	Method      Method     `json:"method"`
	Customer    Customer   `json:"customer"`
	Items       []LineItem `json:"items"`
	ReturnURL   string     `json:"return_url"`
	CancelURL   string     `json:"cancel_url"`
	CallbackURL string     `json:"callback_url"`
	ClientIP    string     `json:"client_ip,omitempty"`
}

// Result is the canonical outcome of a gateway createPayment call.
// RedirectURL and ClientSecret are mutually exclusive: hosted-checkout
// providers return a redirect, embedded-form providers a client secret.
type Result struct {
	Success          bool   `json:"success"`
	GatewayReference string `json:"gateway_reference"`
	RedirectURL      string `json:"redirect_url,omitempty"`
	ClientSecret     string `json:"client_secret,omitempty"`
}

// Request validation errors.
var (
	ErrMissingOrderID  = errors.New("order_id is required")
	ErrInvalidAmount   = errors.New("amount must be a positive number of minor units")
	ErrMissingCurrency = errors.New("currency is required")
	ErrMissingName     = errors.New("customer name is required")
	ErrInvalidEmail    = errors.New("customer email is invalid")
	ErrMissingPhone    = errors.New("customer phone is required for this provider")
	ErrMissingAddress  = errors.New("customer postal address is required for this provider")
	ErrNoItems         = errors.New("at least one line item is required")
)

// Validate checks the request fields a gateway call depends on.
// requireFullAddress is set by providers that reject payments without a
// complete postal address and phone number.
func (r *Request) Validate(requireFullAddress bool) error {
	if r.OrderID == "" {
		return ErrMissingOrderID
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if r.Currency == "" {
		return ErrMissingCurrency
	}
	if r.Customer.Name == "" {
		return ErrMissingName
	}
	if _, err := validate.Email(r.Customer.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(r.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %q: quantity must be positive", item.ID)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %q: unit price cannot be negative", item.ID)
		}
	}
	if requireFullAddress {
		if r.Customer.Phone == "" {
			return ErrMissingPhone
		}
		if r.Customer.Address == "" || r.Customer.City == "" || r.Customer.Postcode == "" {
			return ErrMissingAddress
		}
	}
	return nil
}
