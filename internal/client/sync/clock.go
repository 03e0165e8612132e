package sync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/littleweb/sitebox/internal/sitesdk"
)

const (
	// localNewerBuffer absorbs clock skew when comparing local mtimes
	// against server timestamps.
	localNewerBuffer = 10 * time.Second

	// futureDatedGuard flags local mtimes deliberately set ahead of now;
	// such files are always preserved.
	futureDatedGuard = 60 * time.Second
)

// ClockCalibrator tracks the offset between server time and local time so
// timestamp comparisons survive a drifting local clock. The offset is
// refreshed from status responses; zero until the first calibration.
type ClockCalibrator struct {
	offsetMs atomic.Int64
}

// Calibrate records the server/local delta from a status round trip.
func (c *ClockCalibrator) Calibrate(serverTimeMs int64) {
	offset := serverTimeMs - time.Now().UnixMilli()
	c.offsetMs.Store(offset)
	slog.Debug("clock calibrated", "offsetMs", offset)
}

// OffsetMs returns the current server-minus-local offset in milliseconds.
func (c *ClockCalibrator) OffsetMs() int64 {
	return c.offsetMs.Load()
}

// Adjusted returns local now shifted into server time.
func (c *ClockCalibrator) Adjusted() time.Time {
	return time.Now().Add(time.Duration(c.offsetMs.Load()) * time.Millisecond)
}

// LocalIsNewer reports whether a local mtime beats a server timestamp with
// the skew buffer applied. Ties and near-ties go to the server.
func (c *ClockCalibrator) LocalIsNewer(localMod time.Time, serverMs int64) bool {
	adjustedLocal := localMod.Add(time.Duration(c.offsetMs.Load()) * time.Millisecond)
	return adjustedLocal.After(time.UnixMilli(serverMs).Add(localNewerBuffer))
}

// IsFutureDated reports whether a local mtime, adjusted into server time,
// is more than the guard window ahead of now. A user who dates a file into
// the future did it on purpose; the file never loses a timestamp race.
func (c *ClockCalibrator) IsFutureDated(localMod time.Time) bool {
	adjusted := localMod.Add(time.Duration(c.offsetMs.Load()) * time.Millisecond)
	return adjusted.After(time.Now().Add(futureDatedGuard))
}

// statusClient is the slice of the SDK the calibrator needs.
type statusClient interface {
	Status(ctx context.Context) (*sitesdk.StatusResponse, error)
}

// Recalibrate refreshes the offset from the server, logging but tolerating
// failure; a stale offset is better than none.
func (c *ClockCalibrator) Recalibrate(ctx context.Context, client statusClient) {
	status, err := client.Status(ctx)
	if err != nil {
		slog.Warn("clock recalibration failed", "error", err)
		return
	}
	c.Calibrate(status.ServerTime.UnixMilli())
}
