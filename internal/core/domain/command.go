package domain

type CommandKind string

const (
	CommandAddItem      CommandKind = "add_item"
	CommandSearch       CommandKind = "search"
	CommandVoice        CommandKind = "voice"
	CommandUnrecognized CommandKind = "unrecognized"
)

// Message is an inbound chat message as delivered by the transport. Voice
// marks an audio message, which carries no text.
type Message struct {
	Text  string
	Voice bool
}

// Command is a classified inbound chat message.
type Command struct {
	Kind CommandKind
	Text string

	// Set for CommandAddItem only. Quantity is the raw token, validated later.
	Code     string
	Quantity string
}
