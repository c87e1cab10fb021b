package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionSuspended, SubscriptionCancelled, SubscriptionExpired:
		return true
	}
	return false
}

type Subscription struct {
	ID          string             `json:"id"`
	ContractID  string             `json:"contract_id"`
	CustomerID  string             `json:"customer_id"`
	ProductID   string             `json:"product_id"`
	ProductName string             `json:"product_name"`
	Quantity    float64            `json:"quantity"`
	UnitPrice   float64            `json:"unit_price"`
	TotalPrice  float64            `json:"total_price"`
	UsageAmount *float64           `json:"usage_amount,omitempty"`
	UsageLimit  *float64           `json:"usage_limit,omitempty"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Status      SubscriptionStatus `json:"status"`
}

// HasUsage reports whether both usage fields are present.
func (s Subscription) HasUsage() bool {
	return s.UsageAmount != nil && s.UsageLimit != nil
}
