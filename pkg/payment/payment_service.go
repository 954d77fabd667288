package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// ServiceInterface defines the contract for a payment processing service.
type ServiceInterface interface {
	ProcessPayment(ctx context.Context, userID string, amount decimal.Decimal, paymentMethodID, idempotencyKey string) (string, error)
}

// StripeService charges through Stripe PaymentIntents. Without an API key it
// simulates a successful charge, which is what local and test setups use.
type StripeService struct {
	api      *client.API
	currency string
}

func NewStripeService(apiKey, currency string) *StripeService {
	s := &StripeService{currency: currency}
	if apiKey != "" {
		s.api = client.New(apiKey, nil)
	}
	if s.currency == "" {
		s.currency = string(stripe.CurrencyINR)
	}
	return s
}

// ProcessPayment confirms a card payment for amount and returns the
// payment intent id. Repeating a call with the same idempotencyKey returns
// the first outcome instead of charging again.
func (s *StripeService) ProcessPayment(ctx context.Context, userID string, amount decimal.Decimal, paymentMethodID, idempotencyKey string) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("invalid payment amount %s", amount)
	}
	if s.api == nil {
		return "sim_" + uuid.NewString(), nil
	}
	if paymentMethodID == "" {
		return "", fmt.Errorf("payment method required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinorUnits(amount)),
		Currency:           stripe.String(s.currency),
		PaymentMethod:      stripe.String(paymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return pi.ID, fmt.Errorf("stripe: payment intent %s is %s", pi.ID, pi.Status)
	}
	return pi.ID, nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
