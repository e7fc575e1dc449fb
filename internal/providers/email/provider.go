package email

import "context"

// Provider sends rendered email.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider drops all mail. Selected when SMTP_ENABLED is off, for tests
// and local development.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	_ = ctx
	_ = to
	_ = subject
	_ = htmlBody
	return nil
}
