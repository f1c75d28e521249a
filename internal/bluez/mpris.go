//go:build linux

package bluez

import (
	"context"
	"strconv"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

// CommandCallback receives (command, detail) for every successful MPRIS
// method invocation, per §4.4.1.
type CommandCallback func(command, detail string)

// Player exports org.mpris.MediaPlayer2.Player on the system bus so BlueZ
// binds it to per-device AVRCP controller sessions.
type Player struct {
	log      *log.Logger
	conn     *dbus.Conn
	path     dbus.ObjectPath
	callback CommandCallback
	props    *prop.Properties

	mu             sync.Mutex
	registered     bool
}

// NewPlayer constructs an MPRIS player; Register exports it on the bus.
func NewPlayer(logger *log.Logger, conn *dbus.Conn, callback CommandCallback) *Player {
	return &Player{
		log:      logger.With("component", "mpris"),
		conn:     conn,
		path:     playerPath,
		callback: callback,
	}
}

// Register exports the player's methods and properties and registers it
// against the adapter's Media1 object, per §4.4.1's "idempotent" contract.
func (p *Player) Register(ctx context.Context, adapter dbus.ObjectPath) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registered {
		return nil
	}

	if err := p.conn.Export(p, p.path, ifacePlayer); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("export mpris player"))
	}

	propsSpec := prop.Map{
		ifacePlayer: {
			"PlaybackStatus": {Value: "Stopped", Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"LoopStatus":     {Value: "None", Writable: true, Emit: prop.EmitTrue, Callback: nil},
			"Rate":           {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: nil},
			"Shuffle":        {Value: false, Writable: true, Emit: prop.EmitTrue, Callback: nil},
			"Metadata":       {Value: map[string]dbus.Variant{}, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"Volume":         {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: p.onVolumeSet},
			"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
			"MinimumRate":    {Value: 1.0, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"MaximumRate":    {Value: 1.0, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanGoNext":      {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanGoPrevious":  {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanPause":       {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanSeek":        {Value: false, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanControl":     {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
		},
	}
	props, err := prop.Export(p.conn, p.path, propsSpec)
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("export mpris properties"))
	}
	p.props = props

	node := &introspect.Node{
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: ifacePlayer, Methods: introspect.Methods(p)},
		},
	}
	if err := p.conn.Export(introspect.NewIntrospectable(node), p.path, dbusIntrospectableIface); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("export mpris introspection"))
	}

	media := p.conn.Object(busName, adapter)
	if call := media.Call(ifaceMedia1+".RegisterPlayer", 0, p.path, map[string]dbus.Variant{}); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("register mpris player with media1"))
	}

	p.registered = true
	return nil
}

// Unregister reverses Register.
func (p *Player) Unregister(ctx context.Context, adapter dbus.ObjectPath) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.registered {
		return nil
	}
	media := p.conn.Object(busName, adapter)
	if call := media.Call(ifaceMedia1+".UnregisterPlayer", 0, p.path); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("unregister mpris player"))
	}
	p.registered = false
	return nil
}

// SetPlaybackStatus forces the reported PlaybackStatus, used to tell the
// speaker "Playing" when an A2DP transport goes active (§4.4.1).
func (p *Player) SetPlaybackStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.props == nil {
		return
	}
	p.props.SetMust(ifacePlayer, "PlaybackStatus", status)
}

func (p *Player) onVolumeSet(c *prop.Change) *dbus.Error {
	vol, ok := c.Value.(float64)
	if !ok {
		return nil
	}
	if vol < 0 {
		vol = 0
	}
	if vol > 1 {
		vol = 1
	}
	if p.callback != nil {
		p.callback("volume", formatFloat(vol))
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
