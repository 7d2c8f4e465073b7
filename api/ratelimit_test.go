package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/internal/clock"
)

func lockOut(rl *loginRateLimiter, username string) {
	for range maxFailures {
		rl.recordFailure(username)
	}
}

func TestRateLimiter_AllowsBeforeThreshold(t *testing.T) {
	rl := newLoginRateLimiter(clock.Fake(epoch))
	for range maxFailures - 1 {
		rl.recordFailure("ana")
		blocked, _ := rl.check("ana")
		assert.False(t, blocked)
	}
}

func TestRateLimiter_BlocksAfterThreshold(t *testing.T) {
	rl := newLoginRateLimiter(clock.Fake(epoch))
	lockOut(rl, "ana")

	blocked, retryAfter := rl.check("ana")
	require.True(t, blocked)
	assert.Equal(t, baseLockout, retryAfter)
}

func TestRateLimiter_ExponentialBackoff(t *testing.T) {
	clk := clock.Fake(epoch)
	rl := newLoginRateLimiter(clk)
	lockOut(rl, "ana")

	rl.recordFailure("ana")
	_, second := rl.check("ana")
	assert.Equal(t, 2*baseLockout, second)

	for range 10 {
		rl.recordFailure("ana")
	}
	_, capped := rl.check("ana")
	assert.Equal(t, maxLockout, capped)
}

func TestRateLimiter_LockoutExpires(t *testing.T) {
	clk := clock.Fake(epoch)
	rl := newLoginRateLimiter(clk)
	lockOut(rl, "ana")

	clk.Advance(baseLockout + time.Second)
	blocked, _ := rl.check("ana")
	assert.False(t, blocked)
}

func TestRateLimiter_SuccessResetsCounter(t *testing.T) {
	rl := newLoginRateLimiter(clock.Fake(epoch))
	lockOut(rl, "ana")
	rl.recordSuccess("ana")

	blocked, _ := rl.check("ana")
	assert.False(t, blocked)
}

func TestRateLimiter_FoldsUsernames(t *testing.T) {
	rl := newLoginRateLimiter(clock.Fake(epoch))
	lockOut(rl, " Ana")

	blocked, _ := rl.check("ana")
	assert.True(t, blocked)
	blocked, _ = rl.check("bruno")
	assert.False(t, blocked)
}

func TestRateLimiter_Sweep(t *testing.T) {
	clk := clock.Fake(epoch)
	rl := newLoginRateLimiter(clk)
	rl.recordFailure("ana")
	clk.Advance(attemptExpiry + time.Minute)
	rl.recordFailure("bruno")

	rl.sweep()
	assert.Len(t, rl.attempts, 1)
	assert.Contains(t, rl.attempts, "bruno")
}

func TestGlobalRateLimiter(t *testing.T) {
	clk := clock.Fake(epoch)
	rl := newGlobalRateLimiter(clk)
	for range globalMaxFailures - 1 {
		rl.recordFailure()
	}
	blocked, _ := rl.check()
	assert.False(t, blocked)

	rl.recordFailure()
	blocked, retryAfter := rl.check()
	require.True(t, blocked)
	assert.Equal(t, globalLockout, retryAfter)

	clk.Advance(globalLockout)
	blocked, _ = rl.check()
	assert.False(t, blocked)
}

func TestWriteRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimited(rec, 1500*time.Millisecond)
	assert.Equal(t, 429, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "1", retryAfterString(0))
}
