package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCard    PaymentMethod = "card"
	MethodPaypal  PaymentMethod = "paypal"
	MethodDeposit PaymentMethod = "deposit"
)

// ValidMethod reports whether m is one of the accepted payment methods.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCard, MethodPaypal, MethodDeposit:
		return true
	}
	return false
}

// Payment is one purchase attempt against a Course. Version is stamped from
// the owning course at creation time and never changes afterwards. Sent
// guards the at-most-once receipt email.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID string        `bun:"payment_id,pk" json:"payment_id"`
	CourseID  string        `bun:"course_id,notnull" json:"course_id"`
	Name      string        `bun:"name,notnull" json:"name"`
	Email     string        `bun:"email,notnull" json:"email"`
	Phone     string        `bun:"phone" json:"phone,omitempty"`
	Country   string        `bun:"country" json:"country,omitempty"`
	Quantity  int           `bun:"quantity,notnull" json:"quantity"`
	CreatedAt time.Time     `bun:"created_at,notnull" json:"created_at"`
	Charged   bool          `bun:"charged" json:"charged"`
	Method    PaymentMethod `bun:"method,notnull" json:"method"`
	Error     string        `bun:"error" json:"error,omitempty"`
	Sent      bool          `bun:"sent" json:"sent"`
	Version   int           `bun:"version,notnull,default:1" json:"version"`
	IP        string        `bun:"ip" json:"ip,omitempty"`
	UserAgent string        `bun:"user_agent" json:"user_agent,omitempty"`
	IntentID  string        `bun:"intent_id" json:"intent_id,omitempty"`
}

type PaymentRequest struct {
	CourseSlug string        `json:"course_slug"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Country    string        `json:"country"`
	Quantity   int           `json:"quantity"`
	Method     PaymentMethod `json:"method"`
}

type PaymentResponse struct {
	PaymentID string        `json:"payment_id"`
	CourseID  string        `json:"course_id"`
	Method    PaymentMethod `json:"method"`
	Charged   bool          `json:"charged"`
	Version   int           `json:"version"`
}

// RegionCount is one (country, count) pair of the charged-registrations
// breakdown.
type RegionCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// TimelinePoint is one calendar day with at least one charged payment.
type TimelinePoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
