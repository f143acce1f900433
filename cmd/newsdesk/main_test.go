package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBackgroundWaitsForLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var finished atomic.Int32
	slowStop := func(ctx context.Context) {
		<-ctx.Done()
		// a job still finishing its write
		time.Sleep(50 * time.Millisecond)
		finished.Add(1)
	}
	quickStop := func(ctx context.Context) {
		<-ctx.Done()
		finished.Add(1)
	}

	wait := startBackground(ctx, slowStop, quickStop)
	cancel()

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after cancel")
	}
	assert.Equal(t, int32(2), finished.Load())
}

func TestStartBackgroundWithoutLoops(t *testing.T) {
	wait := startBackground(context.Background())
	require.NotPanics(t, wait)
}
