package orchestrator

import (
	"context"
	"testing"
	"time"
)

func newTestController() *Controller {
	return &Controller{
		cmds: make(chan func(ctx context.Context), 32),
		done: make(chan struct{}),
	}
}

func TestIsScanningReflectsScanCancelState(t *testing.T) {
	c := newTestController()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.run(ctx)
	defer c.Stop()

	if c.IsScanning() {
		t.Fatal("expected IsScanning to be false before any scan starts")
	}

	_, scanCancel := context.WithCancel(context.Background())
	c.enqueue(func(context.Context) { c.scanCancel = scanCancel })
	// enqueue is async; give the command loop a moment to apply it.
	deadline := time.After(time.Second)
	for {
		if c.IsScanning() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected IsScanning to become true once scanCancel is set")
		default:
		}
	}
}

func TestIsScanningAfterStopReturnsFalse(t *testing.T) {
	c := newTestController()
	ctx, cancel := context.WithCancel(context.Background())
	go c.run(ctx)
	cancel()
	c.Stop()

	if c.IsScanning() {
		t.Fatal("expected IsScanning to report false once the controller has stopped")
	}
}
