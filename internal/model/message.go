package model

import "time"

// Sender identifies which side of the project wrote a message.
type Sender string

const (
	FromClient    Sender = "client"
	FromDeveloper Sender = "developer"
)

// Message is one entry in a project's conversation thread.  Only Read is
// ever mutated after append.
type Message struct {
	ID        string    `json:"id"`
	From      Sender    `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
