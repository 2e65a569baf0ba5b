package model

// Message is the normalized record handed to the downstream handler for
// an admitted inbound event.
type Message struct {
	RoomID     string `json:"roomId"`
	EventID    string `json:"eventId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
	Body       string `json:"body"`
	Timestamp  string `json:"timestamp"`
	ThreadID   string `json:"threadId,omitempty"`
}
