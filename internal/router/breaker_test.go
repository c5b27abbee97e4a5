package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		b.RecordFailure(0, "m")
		assert.Equal(t, Closed, b.Observe(0, "m").State)
	}
	b.RecordFailure(0, "m")
	assert.Equal(t, Open, b.Observe(0, "m").State)
	assert.True(t, b.Observe(0, "m").Blocked)
}

func TestBreakerRecoversAfterCoolDown(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.RecordFailure(0, "m")
	assert.Equal(t, Open, b.Observe(0, "m").State)

	time.Sleep(20 * time.Millisecond)
	obs := b.Observe(0, "m")
	assert.Equal(t, HalfOpen, obs.State)
	assert.False(t, obs.Blocked)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.RecordFailure(0, "m")
	time.Sleep(20 * time.Millisecond)
	b.Observe(0, "m") // advances Open -> HalfOpen

	b.RecordFailure(0, "m")
	assert.Equal(t, Open, b.Observe(0, "m").State)
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b := NewBreaker(3, 30*time.Second)
	b.RecordFailure(0, "m")
	b.RecordFailure(0, "m")
	b.RecordSuccess(0, "m")
	assert.Equal(t, Closed, b.Observe(0, "m").State)

	b.RecordFailure(0, "m")
	b.RecordFailure(0, "m")
	assert.Equal(t, Closed, b.Observe(0, "m").State, "counter should have reset on success")
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	b := NewBreaker(1, 30*time.Second)
	b.RecordFailure(0, "m1")
	assert.Equal(t, Open, b.Observe(0, "m1").State)
	assert.Equal(t, Closed, b.Observe(0, "m2").State)
	assert.Equal(t, Closed, b.Observe(1, "m1").State)
}
