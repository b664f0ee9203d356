package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestService_Now(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manual := NewManual(start)
	svc := NewService(manual)

	reading := svc.Now()
	assert.True(t, start.Equal(reading.ServerTime))
	assert.Equal(t, start.UnixMilli(), reading.Timestamp)

	manual.Advance(90 * time.Second)
	reading = svc.Now()
	assert.True(t, start.Add(90*time.Second).Equal(reading.ServerTime))
	assert.Equal(t, start.Add(90*time.Second).UnixMilli(), reading.Timestamp)
}

func TestService_DefaultsToSystemClock(t *testing.T) {
	svc := NewService(nil)

	before := time.Now()
	reading := svc.Now()
	after := time.Now()

	assert.False(t, reading.ServerTime.Before(before.Add(-time.Second)))
	assert.False(t, reading.ServerTime.After(after.Add(time.Second)))
	assert.Equal(t, time.UTC, reading.ServerTime.Location())
}
