// Package rail is the HTTP client for the external payout provider. A
// circuit breaker wraps every call so a degraded provider fails withdrawals
// fast instead of tying up request workers on timeouts.
package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
)

// Client talks to the payout provider. It satisfies wallet.PayoutRail.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient constructs a client. The breaker opens after five consecutive
// failures and probes again after 30 seconds.
func NewClient(baseURL, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payout-rail",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// an unknown account is the caller's problem, not provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, shared.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payout rail breaker state change",
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

type resolveResponse struct {
	AccountName string `json:"account_name"`
}

type payoutResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ResolveAccount looks up the holder name for a bank account.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	var out resolveResponse
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/v1/accounts/resolve?account_number=%s&bank_code=%s", accountNumber, bankCode),
		nil, &out)
	if err != nil {
		return "", err
	}
	if out.AccountName == "" {
		return "", fmt.Errorf("resolve %s/%s: %w", accountNumber, bankCode, shared.ErrNotFound)
	}
	return out.AccountName, nil
}

// InitiatePayout asks the provider to pay out to the destination account.
func (c *Client) InitiatePayout(ctx context.Context, req wallet.PayoutRequest) (wallet.PayoutResult, error) {
	payload := map[string]any{
		"amount":         req.Amount.String(),
		"currency":       req.Currency,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"narration":      req.Narration,
	}
	var out payoutResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", payload, &out); err != nil {
		return wallet.PayoutResult{}, err
	}
	return wallet.PayoutResult{Reference: out.Reference, Status: out.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.secret)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, shared.ErrNotFound
		}
		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("rail %s %s: status %d: %s", method, path, resp.StatusCode, raw)
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		switch err {
		case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
			return fmt.Errorf("%w: payout rail unavailable", shared.ErrPayoutFailed)
		case shared.ErrNotFound:
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrPayoutFailed, err)
	}
	return nil
}
