package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidDomain(t *testing.T) {
	_, err := New("", 1, 1)
	require.Error(t, err)
}

func TestLimiterAllowBurst(t *testing.T) {
	l, err := New("example.com", 1, 2)
	require.NoError(t, err)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiterWaitRespectsContextCancellation(t *testing.T) {
	l, err := New("example.com", 0.001, 1)
	require.NoError(t, err)
	require.True(t, l.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Wait(ctx)
	assert.Error(t, err)
}

func TestLimiterDomainNormalized(t *testing.T) {
	l, err := New("HTTPS://Example.COM:443", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "example.com", l.Domain())
}
