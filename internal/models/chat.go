package models

import "time"

const (
	ChatWhoMe = "me"
	ChatWhoAI = "ai"
)

// MaxTranscriptLen — сколько последних сообщений храним на магазин.
const MaxTranscriptLen = 50

type ChatMessage struct {
	Who       string    `json:"who"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
