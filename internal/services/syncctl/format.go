package syncctl

import (
	"fmt"
	"time"
)

// FormatLeft печатает остаток кулдауна в человекочитаемом виде: "3m 12s".
func FormatLeft(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatAgo печатает давность последней синхронизации: "never", "just now",
// "5m ago", "2h ago", "3d ago".
func FormatAgo(lastSyncAt int64, now time.Time) string {
	if lastSyncAt <= 0 {
		return "never"
	}
	d := now.Sub(time.UnixMilli(lastSyncAt))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
