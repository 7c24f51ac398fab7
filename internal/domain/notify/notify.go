// Package notify describes how engines report outcomes to players and
// moderators.
package notify

import "context"

type Message struct {
	Title   string
	Content string
	Color   int
}

// Notifier delivers messages on a best-effort basis. Callers log errors and
// never roll back committed work because of them.
type Notifier interface {
	Broadcast(ctx context.Context, channelIDs []string, msg Message) error
	Direct(ctx context.Context, userID string, msg Message) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Broadcast(context.Context, []string, Message) error { return nil }
func (Nop) Direct(context.Context, string, Message) error      { return nil }
