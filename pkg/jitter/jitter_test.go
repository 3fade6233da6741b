package jitter

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second}

	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 200*time.Millisecond, b.Next(1))
	assert.Equal(t, 800*time.Millisecond, b.Next(3))
	assert.Equal(t, time.Second, b.Next(4))
	assert.Equal(t, time.Second, b.Next(40))
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute, Factor: DefaultJitter, Rand: rand.New(rand.NewSource(1))}
	for attempt := 0; attempt < 5; attempt++ {
		d := b.Next(attempt)
		floor := capped(b.Base, b.Max, attempt)
		assert.GreaterOrEqual(t, d, floor)
		assert.LessOrEqual(t, d, floor+floor/2)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(time.Second, 0)
	assert.Equal(t, time.Second, d)
}
