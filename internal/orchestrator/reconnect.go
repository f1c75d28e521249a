package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/godbus/dbus/v5"
)

// deviceIface is the BlueZ interface name carried on device property-change
// events; duplicated here since bluez keeps its own copy unexported.
const deviceIface = "org.bluez.Device1"

// quickRetryDelay and quickRetryAttempts give a fast first retry after an
// unexpected drop before falling back to exponential backoff (§4.6).
const (
	quickRetryDelay    = 10 * time.Second
	quickRetryAttempts = 1
)

// reconnectScheduler runs one retry task per device, suppressing retries
// per the rules of §4.6: auto-reconnect disabled globally, device unknown
// or not auto_connect, already connecting, or the last disconnect was
// user-initiated.
type reconnectScheduler struct {
	c *Controller

	mu       sync.Mutex
	cancels  map[macaddr.Address]context.CancelFunc
	disabled bool
}

func newReconnectScheduler(c *Controller) *reconnectScheduler {
	return &reconnectScheduler{c: c, cancels: make(map[macaddr.Address]context.CancelFunc)}
}

// start wires the scheduler to BlueZ disconnect events so an unexpected
// drop schedules a retry task automatically.
func (r *reconnectScheduler) start(ctx context.Context) {
	go r.watchDisconnects(ctx)
}

func (r *reconnectScheduler) watchDisconnects(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.c.session.Events():
			if !ok {
				return
			}
			if ev.Kind != bluez.EventPropertiesChanged || ev.Iface != deviceIface {
				continue
			}
			connected, present := ev.Changed["Connected"].(bool)
			if !present || connected {
				continue
			}
			if address, found := r.addressForPath(ev.Path); found {
				r.onDisconnected(address)
			}
		}
	}
}

func (r *reconnectScheduler) addressForPath(path dbus.ObjectPath) (macaddr.Address, bool) {
	for _, dev := range r.c.session.EnumerateAudioDevices(r.c.adapter) {
		if dev.Path == path {
			return dev.Address, true
		}
	}
	return "", false
}

// onDisconnected schedules a retry task for address unless suppressed.
func (r *reconnectScheduler) onDisconnected(address macaddr.Address) {
	live, ok := r.c.live.Get(address)
	if !ok {
		return
	}
	if live.SuppressReconnect {
		return
	}

	r.schedule(address)
}

// schedule starts (or replaces) the retry task for address.
func (r *reconnectScheduler) schedule(address macaddr.Address) {
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return
	}
	if cancel, exists := r.cancels[address]; exists {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[address] = cancel
	r.mu.Unlock()

	go r.run(ctx, address)
}

func (r *reconnectScheduler) run(ctx context.Context, address macaddr.Address) {
	settings := r.c.settings.Get()
	if !settings.AutoReconnect {
		return
	}
	d, ok := r.c.devices.Get(address)
	if !ok || !d.AutoConnect {
		return
	}

	attempt := 0
	for {
		var wait time.Duration
		if attempt < quickRetryAttempts {
			wait = quickRetryDelay
			r.c.notice("%s: quick reconnect in %s", address, wait)
		} else {
			backoff := settings.ReconnectInterval * time.Duration(1<<uint(attempt-quickRetryAttempts))
			if backoff > settings.ReconnectMaxBackoff || backoff <= 0 {
				backoff = settings.ReconnectMaxBackoff
			}
			jitter := time.Duration(rand.Int63n(int64(backoff) / 10 + 1))
			wait = backoff + jitter
			r.c.notice("%s: reconnecting in %s (attempt %d)", address, wait, attempt+1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		live, ok := r.c.live.Get(address)
		if !ok || live.SuppressReconnect || live.ConnectingInProgress {
			attempt++
			continue
		}

		if devInfo, known := r.c.session.Device(address); known && devInfo.Connected {
			return
		}

		if err := r.c.Connect(ctx, address); err == nil {
			r.c.notice("%s: reconnected", address)
			return
		}
		attempt++
	}
}

// cancel stops any pending retry task for address.
func (r *reconnectScheduler) cancel(address macaddr.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[address]; ok {
		cancel()
		delete(r.cancels, address)
	}
}

// suspend stops scheduling new retry tasks; used while ClearAll tears down
// every device so a concurrently-running retry doesn't race the wipe.
func (r *reconnectScheduler) suspend() {
	r.mu.Lock()
	r.disabled = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = make(map[macaddr.Address]context.CancelFunc)
	r.mu.Unlock()
}

func (r *reconnectScheduler) resume() {
	r.mu.Lock()
	r.disabled = false
	r.mu.Unlock()
}
