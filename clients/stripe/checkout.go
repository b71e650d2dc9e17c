// Package stripe creates hosted checkout sessions for subscription plans.
package stripe

import (
	"context"
	"errors"
	"fmt"

	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

var ErrNotConfigured = errors.New("Stripe secret key not configured")

// Plan is a purchasable subscription plan.
type Plan struct {
	Name        string
	AmountCents int64
	// Interval is "month" or "year"; empty means a one-time payment.
	Interval string
}

var Plans = map[string]Plan{
	"monthly":  {Name: "ReadRival Premium Monthly", AmountCents: 399, Interval: "month"},
	"yearly":   {Name: "ReadRival Premium Yearly", AmountCents: 3900, Interval: "year"},
	"lifetime": {Name: "ReadRival Premium Lifetime", AmountCents: 9900},
}

type CheckoutRequest struct {
	UserID   string
	Email    string
	PlanType string
	Origin   string
}

type CheckoutSession struct {
	SessionID  string
	URL        string
	CustomerID string
}

// Checkout talks to Stripe. Each call is attempted once.
type Checkout struct {
	api      *client.API
	currency string
}

func NewCheckout(secretKey, currency string) *Checkout {
	return newCheckout(secretKey, currency, nil)
}

// newCheckout builds the client with network retries disabled. A non-nil
// url overrides the API host.
func newCheckout(secretKey, currency string, url *string) *Checkout {
	if currency == "" {
		currency = "usd"
	}
	c := &Checkout{currency: currency}
	if secretKey == "" {
		return c
	}
	cfg := func() *stripego.BackendConfig {
		return &stripego.BackendConfig{URL: url, MaxNetworkRetries: stripego.Int64(0)}
	}
	c.api = &client.API{}
	c.api.Init(secretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, cfg()),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, cfg()),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, cfg()),
	})
	return c
}

// CreateSession reuses the customer with the request email, or creates one,
// and opens a checkout session for the plan.
func (c *Checkout) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	plan, ok := Plans[req.PlanType]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", req.PlanType)
	}

	customerID, err := c.findOrCreateCustomer(ctx, req.Email, req.UserID)
	if err != nil {
		return nil, err
	}

	priceData := &stripego.CheckoutSessionLineItemPriceDataParams{
		Currency: stripego.String(c.currency),
		ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(plan.Name),
		},
		UnitAmount: stripego.Int64(plan.AmountCents),
	}
	mode := stripego.CheckoutSessionModePayment
	if plan.Interval != "" {
		mode = stripego.CheckoutSessionModeSubscription
		priceData.Recurring = &stripego.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripego.String(plan.Interval),
		}
	}

	params := &stripego.CheckoutSessionParams{
		Customer: stripego.String(customerID),
		Mode:     stripego.String(string(mode)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: priceData,
			Quantity:  stripego.Int64(1),
		}},
		SuccessURL: stripego.String(fmt.Sprintf("%s/subscription-success?plan=%s", req.Origin, req.PlanType)),
		CancelURL:  stripego.String(req.Origin + "/subscription-canceled"),
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("plan_type", req.PlanType)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError(err)
	}
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL, CustomerID: customerID}, nil
}

func (c *Checkout) findOrCreateCustomer(ctx context.Context, email, userID string) (string, error) {
	listParams := &stripego.CustomerListParams{Email: stripego.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripego.Int64(1)

	iter := c.api.Customers.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", providerError(err)
	}

	params := &stripego.CustomerParams{Email: stripego.String(email)}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", providerError(err)
	}
	return cust.ID, nil
}

// providerError unwraps Stripe's message so callers can surface it.
func providerError(err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return fmt.Errorf("%s: %w", stripeErr.Msg, err)
	}
	return err
}
