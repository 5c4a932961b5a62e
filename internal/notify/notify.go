// Package notify delivers rendered alerts to chat destinations.
package notify

import (
	"context"
	"errors"

	"safeguard-bot/internal/domain"
)

// ErrDestinationUnreachable means the destination rejected the bot
// permanently (kicked, blocked, chat gone). Retrying will not help.
var ErrDestinationUnreachable = errors.New("destination unreachable")

// Message is a rendered alert ready for delivery.
type Message struct {
	ChatID  int64
	Text    string // HTML
	Media   *domain.Media
	Buttons []domain.Button
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
