// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"fmt"
	"html"
	"time"
)

// ResetSubject is the subject line of reset code emails.
const ResetSubject = "Your Password Reset OTP"

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ResetCodeMessage builds the email carrying a reset code valid for ttl.
func ResetCodeMessage(to, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: ResetSubject,
		Text:    fmt.Sprintf("Your OTP for password reset is: %s. It will expire in %d minutes.", code, minutes),
		HTML: fmt.Sprintf("<p>Your OTP for password reset is: <strong>%s</strong>. It will expire in %d minutes.</p>",
			html.EscapeString(code), minutes),
	}
}
