package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalibrateOffset(t *testing.T) {
	c := &ClockCalibrator{}
	assert.Zero(t, c.OffsetMs())

	serverAhead := time.Now().Add(90 * time.Second).UnixMilli()
	c.Calibrate(serverAhead)
	assert.InDelta(t, 90_000, c.OffsetMs(), 1_000)
}

func TestLocalIsNewer(t *testing.T) {
	c := &ClockCalibrator{}
	now := time.Now()

	// within the skew buffer the server wins
	assert.False(t, c.LocalIsNewer(now, now.Add(-5*time.Second).UnixMilli()))
	// clearly older local loses
	assert.False(t, c.LocalIsNewer(now.Add(-time.Minute), now.UnixMilli()))
	// clearly newer local wins
	assert.True(t, c.LocalIsNewer(now, now.Add(-time.Minute).UnixMilli()))
}

func TestLocalIsNewerWithOffset(t *testing.T) {
	c := &ClockCalibrator{}
	// server runs two minutes ahead of us
	c.Calibrate(time.Now().Add(2 * time.Minute).UnixMilli())

	// a local save one second ago, adjusted into server time, beats a
	// server timestamp from a minute ago in server time
	localMod := time.Now().Add(-time.Second)
	serverMs := time.Now().Add(time.Minute).UnixMilli()
	assert.True(t, c.LocalIsNewer(localMod, serverMs))
}

func TestIsFutureDated(t *testing.T) {
	c := &ClockCalibrator{}

	assert.False(t, c.IsFutureDated(time.Now()))
	assert.False(t, c.IsFutureDated(time.Now().Add(30*time.Second)))
	assert.True(t, c.IsFutureDated(time.Now().Add(5*time.Minute)))
}

func TestIsFutureDatedWithOffset(t *testing.T) {
	c := &ClockCalibrator{}
	// server runs two minutes ahead, so a recent mtime lands well into the
	// future once adjusted
	c.Calibrate(time.Now().Add(2 * time.Minute).UnixMilli())

	assert.True(t, c.IsFutureDated(time.Now().Add(-30*time.Second)))
	assert.False(t, c.IsFutureDated(time.Now().Add(-3*time.Minute)))
}
