package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsDue_PastEndDate(t *testing.T) {
	asOf := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	assert.True(t, isDue(endDate, asOf))
}

func TestIsDue_EndDateIsToday(t *testing.T) {
	asOf := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, isDue(endDate, asOf))
}

func TestIsDue_StillInTheFuture(t *testing.T) {
	asOf := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	assert.False(t, isDue(endDate, asOf))
}

func TestSweeper_LogfWithNilLoggerDoesNotPanic(t *testing.T) {
	s := &Sweeper{}
	assert.NotPanics(t, func() {
		s.logf("tenant-1", "boom", assert.AnError)
	})
}
