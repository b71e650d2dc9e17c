package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/clients/stripe"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
)

// CheckoutProvider opens hosted checkout sessions.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error)
}

type SubscriptionService struct {
	DB       *gorm.DB
	Checkout CheckoutProvider
}

func NewSubscriptionService(db *gorm.DB, checkout CheckoutProvider) *SubscriptionService {
	return &SubscriptionService{DB: db, Checkout: checkout}
}

type CheckoutInput struct {
	PlanType string `json:"planType" validate:"required,oneof=monthly yearly lifetime"`
}

type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	PlanType  string `json:"plan_type"`
}

// CreateCheckout opens a checkout session and records it as the user's
// pending subscription. Nothing is stored when the provider call fails.
func (s *SubscriptionService) CreateCheckout(ctx context.Context, userID, email, planType, origin string) (*CheckoutResult, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if _, ok := stripe.Plans[planType]; !ok {
		return nil, apperrors.Validation("invalid plan type")
	}
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.Validation("email is required")
	}
	if s.Checkout == nil {
		return nil, apperrors.Upstream(stripe.ErrNotConfigured.Error(), stripe.ErrNotConfigured)
	}

	sess, err := s.Checkout.CreateSession(ctx, stripe.CheckoutRequest{
		UserID:   userID,
		Email:    email,
		PlanType: planType,
		Origin:   strings.TrimSuffix(origin, "/"),
	})
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("stripe").Inc()
		log.Printf("❌ [SUBSCRIPTION] checkout failed for %s: %v", userID, err)
		return nil, apperrors.Upstream(err.Error(), err)
	}

	sub := models.Subscription{
		UserID:            userID,
		CustomerID:        sess.CustomerID,
		PlanType:          planType,
		Status:            models.SubscriptionPending,
		CheckoutSessionID: sess.SessionID,
		CheckoutURL:       sess.URL,
	}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id", "plan_type", "status", "checkout_session_id", "checkout_url", "updated_at",
		}),
	}).Create(&sub).Error
	if err != nil {
		return nil, apperrors.Internal("failed to record subscription", err)
	}

	log.Printf("💳 [SUBSCRIPTION] %s opened %s checkout %s", userID, planType, sess.SessionID)
	return &CheckoutResult{URL: sess.URL, SessionID: sess.SessionID, PlanType: planType}, nil
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("no subscription")
	}
	if err != nil {
		return nil, apperrors.Internal("DB error fetching subscription", err)
	}
	return &sub, nil
}
