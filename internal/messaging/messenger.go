package messaging

import "context"

type Button struct {
	Text    string `json:"text"`
	Command string `json:"command"`
}

// Messenger delivers human-readable text (plus optional buttons) to a bot
// channel. The actual transport lives outside this service; this contract is
// all the core depends on.
type Messenger interface {
	SendMessage(ctx context.Context, channelID string, text string, buttons []Button) error
}
