package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAllowConsumesAndRefills(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(2, 1, WithClock(clk.Now))

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "buckets are per key")

	clk.Advance(time.Second)
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))

	clk.Advance(10 * time.Second)
	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"), "refill is capped at capacity")
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(1, 1, WithClock(clk.Now))
	l.Allow("a")
	clk.Advance(time.Minute)
	l.Allow("b")

	assert.Equal(t, 1, l.Sweep(30*time.Second))
	assert.Equal(t, 1, l.Len())
}
