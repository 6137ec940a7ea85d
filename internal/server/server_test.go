package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartStop(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0", NewHandler(newEchoEngine(t)))
	assert.Equal(t, "127.0.0.1:0", s.Address())

	require.NoError(t, s.Start(context.Background()))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestServerStartBadAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("256.256.256.256:99999", NewHandler(newEchoEngine(t)))
	err := s.Start(context.Background())
	require.Error(t, err)
}
