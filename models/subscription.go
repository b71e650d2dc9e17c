package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanMonthly  = "monthly"
	PlanYearly   = "yearly"
	PlanLifetime = "lifetime"

	SubscriptionPending = "pending"
)

// Subscription tracks the latest checkout for a user. Activation happens
// outside this service; rows are written here only as pending.
type Subscription struct {
	ID                string `gorm:"primaryKey;size:36" json:"id"`
	UserID            string `gorm:"uniqueIndex;not null;size:64" json:"user_id"`
	CustomerID        string `gorm:"size:64" json:"stripe_customer_id"`
	PlanType          string `gorm:"size:16;not null" json:"plan_type"`
	Status            string `gorm:"size:16;not null" json:"status"`
	CheckoutSessionID string `gorm:"size:128" json:"checkout_session_id"`
	CheckoutURL       string `gorm:"type:text" json:"checkout_url"`

	Timestamps
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
