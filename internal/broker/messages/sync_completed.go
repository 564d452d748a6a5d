package messages

import (
	"time"
)

// SyncCompleted публикуется в Kafka, когда фоновая синхронизация магазина
// дошла до конца (сервер отдал msLeft == 0).
type SyncCompleted struct {
	Shop        string    `json:"shop"`
	TriggeredAt time.Time `json:"triggered_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Снимок статуса на момент завершения.
	LastSyncAt int64 `json:"last_sync_at,omitempty"`

	Message string `json:"message,omitempty"`
}
