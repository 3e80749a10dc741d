package suppression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
	"github.com/kursadbilgin/outreach-dispatch/internal/provider"
)

// Category is a suppression list kept by the delivery provider.
type Category string

const (
	CategoryBounces      Category = "bounces"
	CategoryBlocks       Category = "blocks"
	CategoryUnsubscribes Category = "unsubscribes"
)

// Categories lists every feed category consulted per run.
var Categories = []Category{CategoryBounces, CategoryBlocks, CategoryUnsubscribes}

// Reason maps a feed category to the recorded suppression reason.
func (c Category) Reason() domain.SuppressionReason {
	switch c {
	case CategoryBounces:
		return domain.SuppressionBounced
	case CategoryBlocks:
		return domain.SuppressionBlocked
	case CategoryUnsubscribes:
		return domain.SuppressionUnsubscribed
	default:
		return domain.SuppressionReason(c)
	}
}

// Feed returns the addresses listed under one provider suppression category.
type Feed interface {
	Fetch(ctx context.Context, category Category) ([]string, error)
}

// SendGridFeed reads the SendGrid v3 suppression endpoints.
type SendGridFeed struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
}

type sendGridSuppression struct {
	Email string `json:"email"`
}

func NewSendGridFeed(client *resty.Client, breaker *gobreaker.CircuitBreaker[*resty.Response]) (*SendGridFeed, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if breaker == nil {
		breaker = provider.NewCircuitBreaker("sendgrid-suppression")
	}
	return &SendGridFeed{client: client, breaker: breaker}, nil
}

func (f *SendGridFeed) Fetch(ctx context.Context, category Category) ([]string, error) {
	if strings.TrimSpace(string(category)) == "" {
		return nil, fmt.Errorf("suppression category is required")
	}

	resp, err := f.breaker.Execute(func() (*resty.Response, error) {
		resp, err := f.client.R().
			SetContext(ctx).
			SetPathParam("category", string(category)).
			Get("/v3/suppression/{category}")
		if err != nil {
			return nil, &provider.ProviderError{
				Message:   "suppression request failed",
				Transient: !errors.Is(err, context.Canceled),
				Cause:     err,
			}
		}
		if resp.StatusCode() != http.StatusOK {
			return resp, &provider.ProviderError{
				StatusCode: resp.StatusCode(),
				Message:    fmt.Sprintf("sendgrid suppression %s returned status %d", category, resp.StatusCode()),
				Transient:  resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError,
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", category, err)
	}

	var rows []sendGridSuppression
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", category, err)
	}

	addresses := make([]string, 0, len(rows))
	for _, row := range rows {
		if address := domain.NormalizeAddress(row.Email); address != "" {
			addresses = append(addresses, address)
		}
	}
	return addresses, nil
}
