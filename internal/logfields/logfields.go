package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyPhase      = "phase"
	KeyPath       = "path"
	KeyDocID      = "doc_id"
	KeyRole       = "role"
	KeyTarget     = "target"
	KeyRule       = "rule"
	KeyItemID     = "item_id"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyWorkers    = "workers"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Phase(name string) slog.Attr     { return slog.String(KeyPhase, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DocID(id string) slog.Attr       { return slog.String(KeyDocID, id) }
func Role(r string) slog.Attr         { return slog.String(KeyRole, r) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Rule(name string) slog.Attr      { return slog.String(KeyRule, name) }
func ItemID(id string) slog.Attr      { return slog.String(KeyItemID, id) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Since reports the milliseconds elapsed since start.
func Since(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
