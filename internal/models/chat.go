package models

// Sender identifies who produced a conversation turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatTurn is one prior turn of the conversation, oldest first.
type ChatTurn struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}
