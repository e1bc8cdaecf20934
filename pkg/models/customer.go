package models

import "time"

// CustomerProfile is the Customer-360 view loaded from the customer data
// platform. All fields are best-effort; the pipeline works with a nil
// profile.
type CustomerProfile struct {
	CustomerID         string    `json:"customer_id"`
	Name               string    `json:"name,omitempty"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Tier               string    `json:"tier,omitempty"`
	LifetimeValuePaise int64     `json:"lifetime_value_paise,omitempty"`
	OrderCount         int       `json:"order_count,omitempty"`
	OpenTickets        int       `json:"open_tickets,omitempty"`
	Segments           []string  `json:"segments,omitempty"`
	LastOrderAt        time.Time `json:"last_order_at,omitempty"`
}
