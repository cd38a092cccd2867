package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	stripepkg "github.com/tutorlink/tutorlink-backend/pkg/stripe"
)

// IntentResult is the gateway's view of a payment intent.
type IntentResult struct {
	IntentID     string
	ClientSecret string
	Status       string
	Succeeded    bool
}

// RefundResult identifies a gateway refund.
type RefundResult struct {
	RefundID string
}

// TransferResult identifies a gateway transfer to a tutor.
type TransferResult struct {
	TransferID string
}

// Gateway is the capability interface the orchestrator programs against.
// The production implementation talks to Stripe; tests use fakes.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency enums.Currency, metadata map[string]string) (*IntentResult, error)
	IntentStatus(ctx context.Context, intentID string) (*IntentResult, error)
	CreateRefund(ctx context.Context, intentID string, amountCents int64, reason string) (*RefundResult, error)
	CreateTransfer(ctx context.Context, amountCents int64, currency enums.Currency, destination string) (*TransferResult, error)
}

type stripeGateway struct {
	client stripepkg.GatewayClient
}

// NewStripeGateway adapts the Stripe client to the orchestrator's capability
// interface.
func NewStripeGateway(client stripepkg.GatewayClient) Gateway {
	if client == nil {
		return nil
	}
	return &stripeGateway{client: client}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency enums.Currency, metadata map[string]string) (*IntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency.String()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}
	intent, err := g.client.CreateIntent(ctx, params)
	if err != nil {
		return nil, err
	}
	return intentResult(intent), nil
}

func (g *stripeGateway) IntentStatus(ctx context.Context, intentID string) (*IntentResult, error) {
	intent, err := g.client.GetIntent(ctx, intentID, nil)
	if err != nil {
		return nil, err
	}
	return intentResult(intent), nil
}

func (g *stripeGateway) CreateRefund(ctx context.Context, intentID string, amountCents int64, reason string) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountCents),
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	created, err := g.client.CreateRefund(ctx, params)
	if err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: created.ID}, nil
}

func (g *stripeGateway) CreateTransfer(ctx context.Context, amountCents int64, currency enums.Currency, destination string) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency.String()),
		Destination: stripe.String(destination),
	}
	created, err := g.client.CreateTransfer(ctx, params)
	if err != nil {
		return nil, err
	}
	return &TransferResult{TransferID: created.ID}, nil
}

func intentResult(intent *stripe.PaymentIntent) *IntentResult {
	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		Succeeded:    intent.Status == stripe.PaymentIntentStatusSucceeded,
	}
}
