// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package notify delivers out-of-band messages to users, such as
// password reset codes. Callers treat delivery as best-effort; the
// password lifecycle never fails a request because a send failed.
package notify

import (
	"context"
	"log/slog"
)

// Message templates.
const (
	TemplatePasswordReset = "password-reset"
	TemplateWelcome       = "welcome"
)

// Sender delivers a templated message to a destination address.
type Sender interface {
	Send(ctx context.Context, destination, template string, vars map[string]string) error
}

// LogSender writes messages to the structured log instead of delivering
// them. It is the default sender for development and tests.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message. Never fails.
func (s *LogSender) Send(ctx context.Context, destination, template string, vars map[string]string) error {
	attrs := []any{
		slog.String("destination", destination),
		slog.String("template", template),
	}
	for k, v := range vars {
		attrs = append(attrs, slog.String("var_"+k, v))
	}
	s.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
