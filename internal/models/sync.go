package models

// SyncStatus is the server-reported sync state for a shop. LastSyncAt is
// unix milliseconds, 0 = never synced. MsLeft is the remaining cooldown.
type SyncStatus struct {
	LastSyncAt int64 `json:"lastSyncAt"`
	MsLeft     int64 `json:"msLeft"`
}
