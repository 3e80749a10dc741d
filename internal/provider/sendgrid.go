package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultSendGridBaseURL = "https://api.sendgrid.com"
	defaultSendGridTimeout = 10 * time.Second
	mailSendPath           = "/v3/mail/send"
)

// SendGridConfig configures the SendGrid v3 client.
type SendGridConfig struct {
	BaseURL   string
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewSendGridClient returns a resty client bound to the SendGrid API with bearer auth.
func NewSendGridClient(baseURL, apiKey string, timeout time.Duration) (*resty.Client, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultSendGridBaseURL
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid sendgrid base url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if timeout <= 0 {
		timeout = defaultSendGridTimeout
	}

	client := resty.New().
		SetBaseURL(trimmed).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	return client, nil
}

// SendGridProvider delivers messages through the SendGrid v3 Mail Send API.
type SendGridProvider struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	from    sendGridAddress
}

func NewSendGridProvider(cfg SendGridConfig) (*SendGridProvider, error) {
	client, err := NewSendGridClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return NewSendGridProviderWithClient(cfg, client, NewCircuitBreaker("sendgrid-mail"))
}

func NewSendGridProviderWithClient(
	cfg SendGridConfig,
	client *resty.Client,
	breaker *gobreaker.CircuitBreaker[*resty.Response],
) (*SendGridProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("sender email is required")
	}
	if breaker == nil {
		breaker = NewCircuitBreaker("sendgrid-mail")
	}

	return &SendGridProvider{
		client:  client,
		breaker: breaker,
		from: sendGridAddress{
			Email: strings.TrimSpace(cfg.FromEmail),
			Name:  strings.TrimSpace(cfg.FromName),
		},
	}, nil
}

func (p *SendGridProvider) Send(ctx context.Context, msg Message) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, &ProviderError{Message: "recipient is required"}
	}

	payload := p.buildPayload(msg)

	response, err := p.breaker.Execute(func() (*resty.Response, error) {
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(payload).
			Post(mailSendPath)
		if err != nil {
			return nil, &ProviderError{
				Message:   "provider request failed",
				Transient: !errors.Is(err, context.Canceled),
				Cause:     err,
			}
		}
		if resp == nil {
			return nil, &ProviderError{Message: "provider returned empty response", Transient: true}
		}
		if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
			return resp, nil
		}
		return resp, &ProviderError{
			StatusCode: resp.StatusCode(),
			Message:    sendGridErrorMessage(resp),
			Transient:  isTransientHTTPStatus(resp.StatusCode()),
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ProviderError{Message: "sendgrid circuit open", Transient: true, Cause: err}
		}
		return nil, err
	}

	return &Response{
		StatusCode: response.StatusCode(),
		MessageID:  strings.TrimSpace(response.Header().Get("X-Message-Id")),
	}, nil
}

func (p *SendGridProvider) buildPayload(msg Message) sendGridMailPayload {
	content := make([]sendGridContent, 0, 2)
	// SendGrid requires text/plain before text/html.
	if msg.Text != "" {
		content = append(content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}

	var customArgs map[string]string
	for k, v := range msg.CustomArgs {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if customArgs == nil {
			customArgs = make(map[string]string, len(msg.CustomArgs))
		}
		customArgs[k] = v
	}

	return sendGridMailPayload{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: strings.TrimSpace(msg.To)}}},
		},
		From:       p.from,
		Subject:    msg.Subject,
		Content:    content,
		CustomArgs: customArgs,
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func sendGridErrorMessage(resp *resty.Response) string {
	base := fmt.Sprintf("sendgrid returned status %d", resp.StatusCode())

	body := strings.TrimSpace(resp.String())
	if body == "" {
		return base
	}

	var parsed sendGridErrorResponse
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && len(parsed.Errors) > 0 {
		if msg := strings.TrimSpace(parsed.Errors[0].Message); msg != "" {
			return fmt.Sprintf("%s: %s", base, msg)
		}
	}
	return fmt.Sprintf("%s: %s", base, body)
}
