package domain

import "time"

// MaxMessageLength bounds message content, counted in runes.
const MaxMessageLength = 4000

type Message struct {
	ID         MessageID
	SenderID   ProfileID
	ReceiverID ProfileID
	Content    string
	SentAt     time.Time
	Read       bool
}
