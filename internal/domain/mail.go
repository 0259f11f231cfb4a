package domain

import "context"

// Email is a rendered message ready for delivery.
type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body,omitempty"`
}

// Mailer delivers email. Implementations report failures wrapped in
// ErrDeliveryFailure.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}
