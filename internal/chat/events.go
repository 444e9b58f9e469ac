package chat

// Event topics published by the chat module.
const (
	TopicConversationCreated = "chat.conversation_created"
	TopicTurnAppended        = "chat.turn_appended"
)

// ConversationCreatedEvent is the payload for TopicConversationCreated.
type ConversationCreatedEvent struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// TurnAppendedEvent is the payload for TopicTurnAppended.
type TurnAppendedEvent struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Seq            int    `json:"seq"`
	Service        string `json:"service"`
}
