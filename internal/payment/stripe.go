package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type refundCreator interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Stripe charges a card through a confirmed PaymentIntent.
type Stripe struct {
	intents  intentCreator
	refunds  refundCreator
	currency string
}

func NewStripe(secretKey, currency string) *Stripe {
	if currency == "" {
		currency = string(stripe.CurrencyEUR)
	}
	backend := stripe.GetBackend(stripe.APIBackend)
	return &Stripe{
		intents:  &paymentintent.Client{B: backend, Key: secretKey},
		refunds:  &refund.Client{B: backend, Key: secretKey},
		currency: strings.ToLower(currency),
	}
}

func (s *Stripe) Charge(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Token) == "" {
		return Result{}, fmt.Errorf("card payment requires a payment method token")
	}
	amount := int64(math.Round(req.Amount * 100))
	if amount <= 0 {
		return Result{}, fmt.Errorf("invalid payment amount %.2f", req.Amount)
	}

	currency := s.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.Token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.Context = ctx

	intent, err := s.intents.New(params)
	if err != nil {
		return Result{}, fmt.Errorf("stripe payment intent: %w", err)
	}
	return Result{
		Succeeded: intent.Status == stripe.PaymentIntentStatusSucceeded,
		Reference: intent.ID,
	}, nil
}

// Refund gives back the full amount of the PaymentIntent reference.
func (s *Stripe) Refund(ctx context.Context, reference string) error {
	if strings.TrimSpace(reference) == "" {
		return fmt.Errorf("refund requires a payment reference")
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(reference)}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("refund-" + reference)
	if _, err := s.refunds.New(params); err != nil {
		return fmt.Errorf("stripe refund %s: %w", reference, err)
	}
	return nil
}
