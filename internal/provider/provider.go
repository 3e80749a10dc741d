package provider

import "context"

// Provider is the outbound delivery port. Its transport timeout is owned by the implementation.
type Provider interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}

// Message is a fully rendered message ready for hand-off.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	// CustomArgs are echoed back by the provider on engagement webhooks.
	CustomArgs map[string]string
}

// Response stores provider call metadata for audit.
type Response struct {
	StatusCode int
	MessageID  string
}
