// Package email sends transactional notifications to tenants and landlords.
package email

import "context"

// Email represents an email message to be sent.
type Email struct {
	To          []string
	From        string
	Subject     string
	TextBody    string
	HTMLBody    string // optional
	Attachments []Attachment
}

// Attachment represents a file attachment for an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender defines the interface for sending emails.
type Sender interface {
	// Send sends an email message and returns a provider message ID when
	// one is available.
	Send(ctx context.Context, email *Email) (string, error)
}
