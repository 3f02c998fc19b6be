package domain

// Command is a user intent addressed to one conversation.
type Command interface {
	Conversation() ConversationID
}

type SendMessageCommand struct {
	Conv    ConversationID `validate:"required"`
	Text    string         `validate:"required,max=4000"`
	ReplyTo *ReplyRef
	Upload  *FileUpload
}

func (c SendMessageCommand) Conversation() ConversationID { return c.Conv }

type ToggleReactionCommand struct {
	Conv      ConversationID `validate:"required"`
	MessageID string         `validate:"required"`
	Emoji     string         `validate:"required,max=32"`
}

func (c ToggleReactionCommand) Conversation() ConversationID { return c.Conv }

type EditMessageCommand struct {
	Conv      ConversationID `validate:"required"`
	MessageID string         `validate:"required"`
	Text      string         `validate:"required,max=4000"`
}

func (c EditMessageCommand) Conversation() ConversationID { return c.Conv }

type DeleteMessageCommand struct {
	Conv      ConversationID `validate:"required"`
	MessageID string         `validate:"required"`
}

func (c DeleteMessageCommand) Conversation() ConversationID { return c.Conv }
