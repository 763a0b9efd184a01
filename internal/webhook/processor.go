// Package webhook turns inbound funding notifications into exactly-once
// wallet credits. Each delivery moves RECEIVED -> VERIFIED -> APPLIED or
// REJECTED; redelivery of an applied event is a success, never an error.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
)

// Outcome is the terminal state of one delivery.
type Outcome string

const (
	OutcomeApplied        Outcome = "APPLIED"
	OutcomeAlreadyApplied Outcome = "ALREADY_APPLIED"
	OutcomeRejected       Outcome = "REJECTED"
	OutcomeMalformed      Outcome = "MALFORMED"
)

// FundingEvent is the provider payload. MerchantRef doubles as the
// idempotency key, so the same event delivered N times credits once.
type FundingEvent struct {
	MerchantRef string `json:"merchant_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	UserID      int64  `json:"user_id"`
}

// Result reports what happened to one delivery.
type Result struct {
	Outcome     Outcome         `json:"outcome"`
	MerchantRef string          `json:"merchant_ref,omitempty"`
	Available   decimal.Decimal `json:"available,omitempty"`
	Detail      string          `json:"detail,omitempty"`
}

type creditor interface {
	Credit(ctx context.Context, userID int64, currency string, amount decimal.Decimal, merchantRef string) (wallet.CreditResult, error)
}

// Processor verifies and applies funding deliveries.
type Processor struct {
	secret  []byte
	wallets creditor
	timeout time.Duration
	logger  *slog.Logger
}

// NewProcessor constructs a processor. timeout bounds the apply step so a
// stalled storage call surfaces as a retryable failure instead of hanging
// the provider's delivery worker.
func NewProcessor(secret string, wallets creditor, timeout time.Duration, logger *slog.Logger) *Processor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{secret: []byte(secret), wallets: wallets, timeout: timeout, logger: logger}
}

// Verify checks the hex HMAC-SHA512 of the raw body against the provided
// signature in constant time.
func (p *Processor) Verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, p.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Process runs the full state machine for one delivery. A bad signature
// returns ErrInvalidSignature. A verified but malformed payload returns
// OutcomeMalformed with a nil error, so the transport can acknowledge it and
// stop a trusted-but-buggy sender from retrying forever.
func (p *Processor) Process(ctx context.Context, body []byte, signature string) (Result, error) {
	if !p.Verify(body, signature) {
		return Result{Outcome: OutcomeRejected}, fmt.Errorf("funding webhook: %w", shared.ErrInvalidSignature)
	}

	var event FundingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return Result{Outcome: OutcomeMalformed, Detail: "payload is not valid JSON"}, nil
	}
	if detail := validateEvent(event); detail != "" {
		return Result{Outcome: OutcomeMalformed, MerchantRef: event.MerchantRef, Detail: detail}, nil
	}
	amount, err := decimal.NewFromString(event.Amount)
	if err != nil || amount.Sign() <= 0 {
		return Result{Outcome: OutcomeMalformed, MerchantRef: event.MerchantRef, Detail: "amount must be a positive decimal"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	credit, err := p.wallets.Credit(ctx, event.UserID, event.Currency, amount, event.MerchantRef)
	if err != nil {
		return Result{Outcome: OutcomeRejected, MerchantRef: event.MerchantRef}, fmt.Errorf("apply funding %s: %w", event.MerchantRef, err)
	}

	outcome := OutcomeApplied
	if credit.AlreadyApplied {
		outcome = OutcomeAlreadyApplied
	}
	p.logger.Info("funding webhook applied",
		slog.String("merchant_ref", event.MerchantRef),
		slog.String("outcome", string(outcome)),
		slog.String("amount", amount.String()),
		slog.String("currency", event.Currency),
	)
	return Result{Outcome: outcome, MerchantRef: event.MerchantRef, Available: credit.Available}, nil
}

func validateEvent(e FundingEvent) string {
	switch {
	case e.MerchantRef == "":
		return "merchant_ref is required"
	case e.UserID <= 0:
		return "user_id is required"
	case len(e.Currency) != 3:
		return "currency must be a 3-letter code"
	case e.Amount == "":
		return "amount is required"
	}
	return ""
}
