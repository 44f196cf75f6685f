package domain

import "time"

// ChatTimeLayout is the clock format stamped onto relayed chat messages.
const ChatTimeLayout = "15:04"

// ChatMessage is a relayed text message. The relay fills Sender and Time at
// forward time; the text itself is never inspected.
type ChatMessage struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
	Time   string `json:"time"`
}

// NewPartnerMessage stamps a chat payload the way the receiving side sees it.
func NewPartnerMessage(text string, at time.Time) ChatMessage {
	return ChatMessage{
		Text:   text,
		Sender: "partner",
		Time:   at.Format(ChatTimeLayout),
	}
}
