package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquire_FirstFiveSucceedSixthRPMLimited(t *testing.T) {
	l := New(Config{GlobalRPM: 1000, GlobalTPM: 1000000, UserRPM: 5, UserDailyLimit: 10})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		err := l.Acquire(ctx, "u1", 100)
		cancel()
		require.NoError(t, err, "acquire %d should succeed", i+1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "u1", 100)

	require.Error(t, err)
	rlErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrRPMLimitExceeded, rlErr.Code)
	require.Greater(t, rlErr.RetryAfterSeconds, 0.0)
}

func TestAcquire_DailyLimitExceeded(t *testing.T) {
	l := New(Config{GlobalRPM: 1000, GlobalTPM: 1000000, UserRPM: 1000, UserDailyLimit: 2})

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		require.NoError(t, l.Acquire(ctx, "u1", 10))
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "u1", 10)

	require.Error(t, err)
	require.Equal(t, ErrDailyLimitExceeded, err.(*Error).Code)
}

func TestAcquire_DifferentCallersIndependent(t *testing.T) {
	l := New(Config{GlobalRPM: 1000, GlobalTPM: 1000000, UserRPM: 1, UserDailyLimit: 10})

	ctx1, cancel1 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel1()
	require.NoError(t, l.Acquire(ctx1, "u1", 10))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	require.NoError(t, l.Acquire(ctx2, "u2", 10))
}

func TestAcquire_GlobalTokenBucketBlocksOversizedRequest(t *testing.T) {
	l := New(Config{GlobalRPM: 1000, GlobalTPM: 100, UserRPM: 1000, UserDailyLimit: 1000})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "u1", 100000)

	require.Error(t, err)
	require.Equal(t, ErrTokenLimitExceeded, err.(*Error).Code)
}

func TestEstimateTokens_AsciiAndNonAscii(t *testing.T) {
	n := EstimateTokens("abcd") // 4 ascii chars -> 1 token + 100 buffer
	require.Equal(t, 101, n)
}
