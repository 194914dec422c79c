// internal/services/payment_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/config"
	"github.com/closetloop/marketplace-backend/internal/models"
)

// PaymentService is the card-payment path. Bank-transfer buyers upload
// proof instead and never touch Stripe; this service only matters when the
// buyer pays by card and the payment reference is a Stripe intent id.
type PaymentService struct {
	config *config.Config
}

type PaymentIntentResponse struct {
	ClientSecret   string `json:"client_secret"`
	PaymentID      string `json:"payment_id"`
	PublishableKey string `json:"publishable_key"`
	Status         string `json:"status"`
}

func NewPaymentService(config *config.Config) *PaymentService {
	stripe.Key = config.Payment.StripeSecretKey
	return &PaymentService{config: config}
}

// Enabled reports whether a gateway key is configured.
func (s *PaymentService) Enabled() bool {
	return s.config.Payment.StripeSecretKey != ""
}

// CreatePaymentIntent opens a card payment for the transaction's frozen sale
// price. The intent id is what the buyer then submits as their payment
// reference.
func (s *PaymentService) CreatePaymentIntent(txn *models.Transaction) (*PaymentIntentResponse, error) {
	if !s.Enabled() {
		return nil, apierror.New(apierror.ErrValidation, "card payments are not enabled")
	}
	if !txn.CanSubmitPayment() {
		return nil, apierror.New(apierror.ErrInvalidTransition,
			fmt.Sprintf("cannot open a card payment from status %q", txn.Status))
	}

	// Stripe works in minor units; the decimal amount converts exactly.
	amountInCents := txn.SalePrice.MinorUnits()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String("usd"),
	}
	params.AddMetadata("transaction_id", txn.ID.String())
	params.AddMetadata("buyer_id", txn.BuyerID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntentResponse{
		ClientSecret:   pi.ClientSecret,
		PaymentID:      pi.ID,
		PublishableKey: s.config.Payment.StripePublishableKey,
		Status:         string(pi.Status),
	}, nil
}

// RefundPayment reverses a card payment at the gateway. Bank-transfer
// references are not Stripe's problem; those refunds are settled manually
// and this is a no-op for them.
func (s *PaymentService) RefundPayment(txn *models.Transaction) error {
	if !s.Enabled() {
		return nil
	}
	if !strings.HasPrefix(txn.PaymentReference, "pi_") {
		return nil
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(txn.PaymentReference),
	}
	params.AddMetadata("transaction_id", txn.ID.String())

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to refund payment intent %s: %w", txn.PaymentReference, err)
	}
	return nil
}
