package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	secretsUseCase "github.com/allisson/credvault/internal/secrets/usecase"
)

// fakeServer blocks in Start until Shutdown is called.
type fakeServer struct {
	startErr error
	stopped  chan struct{}
	shutdown atomic.Int32
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{startErr: startErr, stopped: make(chan struct{})}
}

func (f *fakeServer) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stopped
	return nil
}

func (f *fakeServer) Shutdown(context.Context) error {
	if f.shutdown.Add(1) == 1 {
		close(f.stopped)
	}
	return nil
}

type fakeRotation struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRotation) Rotate(context.Context) (*secretsUseCase.RotationReport, error) {
	f.calls.Add(1)
	return &secretsUseCase.RotationReport{}, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServe(t *testing.T) {
	t.Run("StopsOnCancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ops, metrics := newFakeServer(nil), newFakeServer(nil)
		rotation := &fakeRotation{}

		done := make(chan error, 1)
		go func() {
			done <- serve(ctx, []lifecycle{ops, metrics}, rotation, time.Second, discardLogger())
		}()

		require.Eventually(t, func() bool { return rotation.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("serve did not return")
		}
		assert.Equal(t, int32(1), ops.shutdown.Load())
		assert.Equal(t, int32(1), metrics.shutdown.Load())
	})

	t.Run("ServerFailureStopsTheOthers", func(t *testing.T) {
		ops, metrics := newFakeServer(nil), newFakeServer(errors.New("address already in use"))

		err := serve(context.Background(), []lifecycle{ops, metrics}, nil, time.Second, discardLogger())

		assert.ErrorContains(t, err, "address already in use")
		assert.Equal(t, int32(1), ops.shutdown.Load())
	})

	t.Run("RotationFailureKeepsServing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ops := newFakeServer(nil)
		rotation := &fakeRotation{err: errors.New("cipher failure")}

		done := make(chan error, 1)
		go func() {
			done <- serve(ctx, []lifecycle{ops}, rotation, time.Second, discardLogger())
		}()

		require.Eventually(t, func() bool { return rotation.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		assert.Zero(t, ops.shutdown.Load())
		cancel()

		assert.NoError(t, <-done)
	})
}
