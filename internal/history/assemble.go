package history

// BuildRequest returns the messages to send to the completion API: the
// history followed by the new user turn. The result never shares a backing
// array with history.
func BuildRequest(history Conversation, userText string) []Message {
	out := make([]Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, Message{Role: RoleUser, Content: userText})
}

// BuildRecord returns the user and assistant turns to persist after a
// successful completion.
func BuildRecord(userText, assistantText string) (Message, Message) {
	return Message{Role: RoleUser, Content: userText},
		Message{Role: RoleAssistant, Content: assistantText}
}
