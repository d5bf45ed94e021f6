package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/linkarchiver/pkg/types"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestShouldFlushEmptyBatch(t *testing.T) {
	s := NewScheduler()
	assert.False(t, s.ShouldFlush(false, t0, 10*time.Second))
	assert.False(t, s.ShouldFlush(true, t0, 10*time.Second), "forced flush of an empty batch")
}

func TestShouldFlushNeverFlushed(t *testing.T) {
	s := NewScheduler()
	s.Append([]string{"https://a.com"}, t0)
	assert.True(t, s.ShouldFlush(false, t0, time.Hour))
}

func TestShouldFlushInterval(t *testing.T) {
	s := NewScheduler()
	s.Append([]string{"https://a.com"}, t0)
	s.Drain(t0)

	s.Append([]string{"https://b.com"}, t0.Add(5*time.Second))
	assert.False(t, s.ShouldFlush(false, t0.Add(5*time.Second), 10*time.Second))
	assert.False(t, s.ShouldFlush(false, t0.Add(10*time.Second), 10*time.Second), "interval must be exceeded")
	assert.True(t, s.ShouldFlush(false, t0.Add(11*time.Second), 10*time.Second))
	assert.True(t, s.ShouldFlush(true, t0.Add(5*time.Second), 10*time.Second))
}

func TestShouldFlushAfterFailedAttempt(t *testing.T) {
	s := NewScheduler()
	s.Append([]string{"https://a.com"}, t0)
	s.MarkAttempt(t0)

	assert.False(t, s.ShouldFlush(false, t0.Add(time.Second), 10*time.Second), "never flushed, but just attempted")
	assert.False(t, s.ShouldFlush(false, t0.Add(10*time.Second), 10*time.Second))
	assert.True(t, s.ShouldFlush(false, t0.Add(11*time.Second), 10*time.Second))
	assert.True(t, s.ShouldFlush(true, t0.Add(time.Second), 10*time.Second), "forced flush ignores the attempt")

	// A later successful drain takes over as the reference point
	s.Drain(t0.Add(20 * time.Second))
	s.Append([]string{"https://b.com"}, t0.Add(21*time.Second))
	assert.False(t, s.ShouldFlush(false, t0.Add(25*time.Second), 10*time.Second))
	assert.True(t, s.ShouldFlush(false, t0.Add(31*time.Second), 10*time.Second))
}

func TestShouldFlushZeroInterval(t *testing.T) {
	s := NewScheduler()
	s.Append([]string{"https://a.com"}, t0)
	s.Drain(t0)

	s.Append([]string{"https://b.com"}, t0)
	assert.False(t, s.ShouldFlush(false, t0, 0))
	assert.True(t, s.ShouldFlush(false, t0.Add(time.Nanosecond), 0))
}

func TestAppendDrain(t *testing.T) {
	s := NewScheduler()
	s.Append([]string{"https://a.com", "https://b.com"}, t0)
	s.Append(nil, t0.Add(time.Second))
	s.Append([]string{"https://c.com"}, t0.Add(2*time.Second))

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Pending("https://b.com"))
	assert.False(t, s.Pending("https://d.com"))
	assert.Equal(t, t0.Add(2*time.Second), s.LastAppend())

	batch := s.Drain(t0.Add(3 * time.Second))
	assert.Equal(t, types.Batch{"https://a.com", "https://b.com", "https://c.com"}, batch)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Pending("https://a.com"))

	last, ok := s.LastFlush()
	assert.True(t, ok)
	assert.Equal(t, t0.Add(3*time.Second), last)

	// The drained batch does not alias the scheduler
	s.Append([]string{"https://z.com"}, t0)
	assert.Equal(t, "https://a.com", batch[0])
}
