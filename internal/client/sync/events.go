package sync

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// EventType tags engine notifications consumed by the UI layer.
type EventType string

const (
	EventSyncStart    EventType = "sync-start"
	EventSyncComplete EventType = "sync-complete"
	EventSyncError    EventType = "sync-error"
	EventFileUploaded EventType = "file-uploaded"
	EventFileDownload EventType = "file-downloaded"
	EventFileTrashed  EventType = "file-trashed"
	EventFileRenamed  EventType = "file-renamed"
	EventSyncConflict EventType = "sync-conflict"
	EventStreamUp     EventType = "stream-connected"
	EventStreamDown   EventType = "stream-disconnected"
)

// Event is one engine notification.
type Event struct {
	Type EventType
	Path string
	Err  error
	At   time.Time
}

// EventBus fans engine events out to one subscriber over a buffered
// channel. A slow or absent subscriber never blocks sync; overflow events
// are dropped with a log line.
type EventBus struct {
	ch chan Event
}

func NewEventBus() *EventBus {
	return &EventBus{ch: make(chan Event, 128)}
}

// Events returns the subscriber channel.
func (b *EventBus) Events() <-chan Event {
	return b.ch
}

// Publish emits an event without blocking.
func (b *EventBus) Publish(typ EventType, path string, err error) {
	event := Event{Type: typ, Path: path, Err: err, At: time.Now()}
	select {
	case b.ch <- event:
	default:
		slog.Debug("event bus full, dropping", "type", typ, "path", path)
	}
}

// SyncStats counts engine activity since start. DownloadsSkipped counts
// checksum-equal files left untouched; Protected counts local files whose
// newer or future-dated edits outranked the server copy.
type SyncStats struct {
	Uploads          atomic.Int64
	Downloads        atomic.Int64
	DownloadsSkipped atomic.Int64
	Protected        atomic.Int64
	Deletes          atomic.Int64
	Renames          atomic.Int64
	Conflicts        atomic.Int64
	Errors           atomic.Int64
	Reconciles       atomic.Int64
}

// StatsSnapshot is a copyable view of SyncStats.
type StatsSnapshot struct {
	Uploads          int64
	Downloads        int64
	DownloadsSkipped int64
	Protected        int64
	Deletes          int64
	Renames          int64
	Conflicts        int64
	Errors           int64
	Reconciles       int64
}

func (s *SyncStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Uploads:          s.Uploads.Load(),
		Downloads:        s.Downloads.Load(),
		DownloadsSkipped: s.DownloadsSkipped.Load(),
		Protected:        s.Protected.Load(),
		Deletes:          s.Deletes.Load(),
		Renames:          s.Renames.Load(),
		Conflicts:        s.Conflicts.Load(),
		Errors:           s.Errors.Load(),
		Reconciles:       s.Reconciles.Load(),
	}
}
