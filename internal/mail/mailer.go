// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package mail delivers account notification email through a JSON mail
// API, with a log-only fallback for development and tests.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/account"
)

// HTTPMailer posts messages to a Resend-compatible JSON API.
type HTTPMailer struct {
	client *http.Client
	apiURL string
	apiKey string
	from   string
	logger *slog.Logger
}

// NewHTTPMailer creates an HTTPMailer.
func NewHTTPMailer(apiURL, apiKey, from string, logger *slog.Logger) (*HTTPMailer, error) {
	if apiURL == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("api url is required")
	}
	if apiKey == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("api key is required")
	}
	if from == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("from address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPMailer{
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		logger: logger,
	}, nil
}

// apiRequest is the wire shape of an outbound message.
type apiRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send delivers the message. Each send carries a mail ID for log
// correlation; the ID never leaves the process.
func (m *HTTPMailer) Send(ctx context.Context, msg account.Message) error {
	mailID := ulid.Make().String()

	body, err := json.Marshal(apiRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return oops.Code("MAIL_ENCODE_FAILED").With("mail_id", mailID).Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return oops.Code("MAIL_REQUEST_FAILED").With("mail_id", mailID).Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("mail_id", mailID).
			With("to", msg.To).
			Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		// Read a bounded amount of the body for diagnostics.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return oops.Code("MAIL_API_ERROR").
			With("mail_id", mailID).
			With("status", resp.StatusCode).
			With("body", string(detail)).
			Errorf("mail api returned %d", resp.StatusCode)
	}

	m.logger.InfoContext(ctx, "mail sent",
		"mail_id", mailID,
		"to", msg.To,
		"subject", msg.Subject)
	return nil
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(ctx context.Context, msg account.Message) error {
	m.logger.InfoContext(ctx, "mail suppressed (log mailer)",
		"mail_id", ulid.Make().String(),
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

// Compile-time interface checks.
var (
	_ account.Mailer = (*HTTPMailer)(nil)
	_ account.Mailer = (*LogMailer)(nil)
)
