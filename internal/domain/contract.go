package domain

import "time"

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractPending   ContractStatus = "pending"
	ContractExpired   ContractStatus = "expired"
	ContractCancelled ContractStatus = "cancelled"
	ContractRenewed   ContractStatus = "renewed"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractActive, ContractPending, ContractExpired, ContractCancelled, ContractRenewed:
		return true
	}
	return false
}

type BillingFrequency string

const (
	BillingMonthly   BillingFrequency = "monthly"
	BillingQuarterly BillingFrequency = "quarterly"
	BillingAnnually  BillingFrequency = "annually"
	BillingOneTime   BillingFrequency = "one_time"
)

func (f BillingFrequency) Valid() bool {
	switch f {
	case BillingMonthly, BillingQuarterly, BillingAnnually, BillingOneTime:
		return true
	}
	return false
}

// Contract is a customer agreement as delivered by the sync collaborator.
// StartDate never follows EndDate; RenewalDate is independent of both.
type Contract struct {
	ID               string           `json:"id"`
	CustomerID       string           `json:"customer_id"`
	CustomerName     string           `json:"customer_name"`
	ContractNumber   string           `json:"contract_number"`
	StartDate        time.Time        `json:"start_date"`
	EndDate          time.Time        `json:"end_date"`
	RenewalDate      time.Time        `json:"renewal_date"`
	TotalValue       float64          `json:"total_value"`
	Currency         string           `json:"currency"`
	Status           ContractStatus   `json:"status"`
	BillingFrequency BillingFrequency `json:"billing_frequency"`
	AutoRenewal      bool             `json:"auto_renewal"`
	Terms            string           `json:"terms,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
