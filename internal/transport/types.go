// Package transport defines the adapter-neutral types exchanged between the
// bot front end, the watch engine, and the messaging platform.
package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

// MessageRef identifies a message the adapter has sent, precisely enough to
// delete it later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// Adapter is the messaging platform boundary. The watch engine only ever
// calls SendText and DeleteMessage; the command front end consumes the
// update channel fed by Start.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error

	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
