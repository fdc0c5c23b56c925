// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import "context"

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Callers treat delivery as fire-and-forget:
// failures are surfaced but never roll back the account mutation that
// prompted the mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
