// Package orchestrator is the Device Lifecycle Controller: the single
// goroutine that owns device state and drives every BlueZ/PulseAudio
// mutation, per §4.3's state-confinement requirement.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/mpdbridge"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
)

// servicesResolvedTimeout and pendingConnectWait are the bounded waits of
// §5's timeout table.
const (
	servicesResolvedTimeout = 10 * time.Second
	sinkAppearTimeout       = 15 * time.Second
	pendingConnectWait      = 30 * time.Second
	forceReconnectGap       = 10 * time.Second
	a2dpActivationCap       = 3
)

// Controller is the Device Lifecycle Controller. All methods enqueue onto
// a single command channel processed by run(), so concurrent callers never
// observe interleaved mutation of device state.
type Controller struct {
	log     *log.Logger
	session *bluez.Session
	pulse   *pulse.Facade
	devices *store.DeviceStore
	settings *store.SettingsStore
	live    *store.LiveTable
	bus     *events.Bus
	bridge  mpdbridge.Bridge

	adapter dbus.ObjectPath

	configDir string

	idle      *idleEngine
	reconnect *reconnectScheduler

	cmds chan func(ctx context.Context)
	done chan struct{}

	scanCancel context.CancelFunc
}

// New constructs a Controller. Call Start to run its command loop and
// perform startup reconciliation.
func New(
	logger *log.Logger,
	session *bluez.Session,
	facade *pulse.Facade,
	devices *store.DeviceStore,
	settings *store.SettingsStore,
	bus *events.Bus,
	bridge mpdbridge.Bridge,
	configDir string,
) *Controller {
	c := &Controller{
		log:       logger.With("component", "controller"),
		session:   session,
		pulse:     facade,
		devices:   devices,
		settings:  settings,
		live:      store.NewLiveTable(),
		bus:       bus,
		bridge:    bridge,
		configDir: configDir,
		cmds:      make(chan func(ctx context.Context), 32),
		done:      make(chan struct{}),
	}
	c.idle = newIdleEngine(c)
	c.reconnect = newReconnectScheduler(c)
	return c
}

// Start runs the command loop and performs startup reconciliation (§4.3).
func (c *Controller) Start(ctx context.Context) error {
	go c.run(ctx)

	done := make(chan error, 1)
	c.enqueue(func(ctx context.Context) { done <- c.reconcileStartup(ctx) })
	return <-done
}

// Stop ends the command loop; commands still queued are not run. BT
// devices are deliberately left
// connected — §5's shutdown order never disconnects them.
func (c *Controller) Stop() {
	close(c.done)
}

func (c *Controller) run(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case fn := <-c.cmds:
			fn(ctx)
		}
	}
}

// enqueue schedules fn on the command loop and returns without waiting for
// it to run; operations that need a result pass a channel inside fn.
func (c *Controller) enqueue(fn func(ctx context.Context)) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

func (c *Controller) notice(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.log.Info(msg)
	c.bus.Publish(events.KindNotice, events.Now(), msg)
}

// reconcileStartup runs the fourteen-step sequence of §4.3.
func (c *Controller) reconcileStartup(ctx context.Context) error {
	settings := c.settings.Get()

	adapterPath, fellBack, err := c.session.ResolveAdapter(settings.BTAdapter)
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("resolve adapter"))
	}
	c.adapter = adapterPath
	if fellBack {
		c.notice("configured adapter unavailable, falling back to auto for this session")
	}

	if err := c.session.RegisterAgent(ctx); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("register pairing agent"))
	}

	if err := c.session.RegisterPlayer(ctx, c.adapter, c.onMPRISCommand); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("register mpris player"))
	}

	if err := c.devices.Load(); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("load device store"))
	}

	anyHFP := false
	for _, d := range c.devices.All() {
		if d.Settings.AudioProfile == store.ProfileHFP {
			anyHFP = true
			break
		}
	}
	if !anyHFP {
		if err := c.session.RegisterNullHFPProfile(ctx); err != nil {
			c.log.Warn("null hfp profile registration failed", "error", err)
		}
	}

	if err := c.pulse.Connect(ctx); err != nil {
		c.log.Warn("pulseaudio connect failed at startup, will retry lazily", "error", err)
	}

	if adapterAddr, ok := adapterAddressOf(adapterPath, c.session); ok {
		if err := c.settings.MigrateLegacyAdapterName(string(adapterAddr)); err != nil {
			c.log.Warn("legacy adapter migration failed", "error", err)
		}
	}

	for _, d := range c.devices.All() {
		c.live.GetOrCreate(d.Address)
		if devInfo, ok := c.session.Device(d.Address); ok && devInfo.Connected {
			c.onStartupConnectedDevice(ctx, d, devInfo)
		}
	}

	c.removeStaleDeviceObjects(ctx)
	c.adoptUntrackedConnectedDevices(ctx)

	c.reconnect.start(ctx)
	c.enqueue(func(ctx context.Context) { c.reconnectAll(ctx) })

	legacyKeepAlive := store.ReadLegacyKeepAliveOption()
	if err := store.MigrateLegacyKeepAliveFlag(c.log, c.configDir, c.devices, legacyKeepAlive); err != nil {
		c.log.Warn("keep-alive migration failed", "error", err)
	}

	return nil
}

func adapterAddressOf(path dbus.ObjectPath, s *bluez.Session) (macaddr.Address, bool) {
	for _, a := range s.ListAdapters() {
		if a.Path == path {
			return a.Address, true
		}
	}
	return "", false
}

func (c *Controller) onStartupConnectedDevice(ctx context.Context, d store.Device, devInfo bluez.DeviceInfo) {
	live := c.live.GetOrCreate(d.Address)
	live.LastConnectAt = time.Now()

	if err := c.applyProfile(ctx, d); err != nil {
		c.log.Warn("startup profile reapply failed", "address", d.Address, "error", err)
	}
	if d.Settings.AudioProfile == store.ProfileA2DP {
		_ = c.session.DisconnectProfile(ctx, d.Address, bluez.UUIDHFP)
	}
	if d.Settings.AVRCPEnabled {
		c.session.WatchAVRCP(ctx, d.Address, c.onAVRCPEvent)
		if devInfo.HasTransport {
			c.session.SetPlaybackStatus("Playing")
		}
		// §4.4.4: devices found already connected at startup get their
		// AVRCP session refreshed in the background so the remote's
		// transport controls bind to a session BlueZ actually owns,
		// rather than one left over from before the daemon restarted.
		go c.refreshAVRCPSession(ctx, d.Address)
	}
	c.idle.onDeviceConnected(d.Address, d.Settings)
	if d.Settings.MPDEnabled {
		c.bridge.Start(d.Address, d.Settings.MPDPort)
	}
}

// removeStaleDeviceObjects deletes BlueZ device objects that are unpaired,
// disconnected, not in the store, and still advertise audio UUIDs (§4.3
// step 9) — leftover noise from a previous session's discovery.
func (c *Controller) removeStaleDeviceObjects(ctx context.Context) {
	for _, dev := range c.session.EnumerateAudioDevices(c.adapter) {
		if dev.Paired || dev.Connected {
			continue
		}
		if _, ok := c.devices.Get(dev.Address); ok {
			continue
		}
		if err := c.session.RemoveDevice(ctx, dev.Address); err != nil {
			c.log.Debug("stale device removal failed", "address", dev.Address, "error", err)
		}
	}
}

// adoptUntrackedConnectedDevices finds devices connected at the bus level
// that the store doesn't know about and gives them live state so the idle
// engine and AVRCP watch can still observe them (§4.3 step 10).
func (c *Controller) adoptUntrackedConnectedDevices(ctx context.Context) {
	for _, dev := range c.session.EnumerateAudioDevices(c.adapter) {
		if !dev.Connected {
			continue
		}
		if _, ok := c.devices.Get(dev.Address); ok {
			continue
		}
		c.live.GetOrCreate(dev.Address)
		c.session.WatchAVRCP(ctx, dev.Address, c.onAVRCPEvent)
	}
}
