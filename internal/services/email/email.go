// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email builds and delivers transactional account emails.
package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	"codeberg.org/oliverandrich/go-account-template/internal/templates"
	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

// TokenLength is the number of random bytes for confirmation tokens.
const TokenLength = 32

// Message is a rendered email ready for delivery. The sender supplies From.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	ReplyTo string // overrides the configured reply-to when set
}

// Sender delivers a message through an email provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns the sender for the configured provider.
func NewSender(cfg *config.EmailConfig) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.EmailProviderSMTP:
		return NewSMTPSender(cfg)
	case config.EmailProviderSendGrid:
		return NewSendGridSender(cfg)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}

// GenerateToken generates a new confirmation token.
// Returns (plaintext token, SHA256 hash for storage, error).
func GenerateToken() (string, string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext := hex.EncodeToString(bytes)
	return plaintext, HashToken(plaintext), nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// VerifyEmailURL returns the link that confirms an account's email address.
func VerifyEmailURL(baseURL, token, uid string) string {
	return buildLink(baseURL, "/auth/verify-email", token, uid)
}

// ConfirmEmailChangeURL returns the link that confirms a pending email change.
func ConfirmEmailChangeURL(baseURL, token, uid string) string {
	return buildLink(baseURL, "/auth/confirm-email-change", token, uid)
}

func buildLink(baseURL, path, token, uid string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("uid", uid)
	return strings.TrimSuffix(baseURL, "/") + path + "?" + q.Encode()
}

// VerificationMessage renders the verification email for the given recipient.
func VerificationMessage(ctx context.Context, to string, data templates.VerificationEmailData) (Message, error) {
	subject := i18n.TData(ctx, "email_verification_subject", map[string]any{"AppName": data.AppName})
	return Compose(ctx, to, subject, templates.VerificationEmail(data))
}

// EmailChangeMessage renders the email change confirmation, addressed to the new email.
func EmailChangeMessage(ctx context.Context, data templates.EmailChangeData) (Message, error) {
	subject := i18n.TData(ctx, "email_change_subject", map[string]any{"AppName": data.AppName})
	return Compose(ctx, data.NewEmail, subject, templates.EmailChangeEmail(data))
}

// Compose renders body into a message with an HTML part and a plain-text alternative.
func Compose(ctx context.Context, to, subject string, body templ.Component) (Message, error) {
	var buf bytes.Buffer
	if err := body.Render(ctx, &buf); err != nil {
		return Message{}, fmt.Errorf("rendering email: %w", err)
	}

	return Message{
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    PlainText(buf.String()),
	}, nil
}

var (
	textPolicy = bluemonday.StrictPolicy()

	// blockBreaks ends every block element with a newline so stripped text
	// keeps its paragraphs apart.
	blockBreaks = strings.NewReplacer(
		"</title>", "</title>\n",
		"</h1>", "</h1>\n",
		"</p>", "</p>\n",
		"<br>", "<br>\n",
	)
)

// PlainText strips markup from an HTML body, keeping one paragraph per line.
func PlainText(htmlBody string) string {
	stripped := html.UnescapeString(textPolicy.Sanitize(blockBreaks.Replace(htmlBody)))

	var paragraphs []string
	for _, line := range strings.Split(stripped, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
