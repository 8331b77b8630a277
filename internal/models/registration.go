package models

import "github.com/uptrace/bun"

// Registration is a redeemed seat tied to a Payment. The model imposes no
// cap relative to Payment.Quantity.
type Registration struct {
	bun.BaseModel `bun:"table:registrations"`

	RegistrationID string `bun:"registration_id,pk" json:"registration_id"`
	PaymentID      string `bun:"payment_id,notnull" json:"payment_id"`
	Email          string `bun:"email,notnull" json:"email"`
}

type RegistrationRequest struct {
	PaymentID string `json:"payment_id"`
	Email     string `json:"email"`
}
