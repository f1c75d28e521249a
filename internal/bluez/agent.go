//go:build linux

package bluez

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// pairingAgent implements org.bluez.Agent1 with the NoInputNoOutput
// ("Just Works") capability, per §6's exported-interface contract. This
// corrects the teacher's own agent, which registers as KeyboardDisplay —
// a headless daemon has no human to prompt, so every confirmation is
// auto-accepted.
type pairingAgent struct {
	log  *log.Logger
	conn *dbus.Conn
	path dbus.ObjectPath
}

func newPairingAgent(logger *log.Logger, conn *dbus.Conn) *pairingAgent {
	return &pairingAgent{log: logger.With("component", "agent"), conn: conn, path: agentPath}
}

// register exports the agent object and requests it as the default agent
// with NoInputNoOutput capability.
func (a *pairingAgent) register(ctx context.Context) error {
	if err := a.conn.Export(a, a.path, ifaceAgent); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("export agent"))
	}

	node := &introspect.Node{
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: ifaceAgent, Methods: introspect.Methods(a)},
		},
	}
	if err := a.conn.Export(introspect.NewIntrospectable(node), a.path, dbusIntrospectableIface); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("export agent introspection"))
	}

	manager := a.conn.Object(busName, agentManagerPath)
	if call := manager.Call(ifaceAgentManager+".RegisterAgent", 0, a.path, "NoInputNoOutput"); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("register agent"))
	}
	if call := manager.Call(ifaceAgentManager+".RequestDefaultAgent", 0, a.path); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("request default agent"))
	}
	return nil
}

func (a *pairingAgent) unregister(ctx context.Context) error {
	manager := a.conn.Object(busName, agentManagerPath)
	if call := manager.Call(ifaceAgentManager+".UnregisterAgent", 0, a.path); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("unregister agent"))
	}
	return nil
}

// The Agent1 methods below all auto-accept ("Just Works"), since
// NoInputNoOutput means BlueZ never expects a pin/passkey/confirmation
// response carrying real content.

func (a *pairingAgent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	a.log.Debug("RequestPinCode", "device", device)
	return "0000", nil
}

func (a *pairingAgent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	a.log.Debug("RequestPasskey", "device", device)
	return 0, nil
}

func (a *pairingAgent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	a.log.Debug("DisplayPinCode", "device", device, "pincode", pincode)
	return nil
}

func (a *pairingAgent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	a.log.Debug("DisplayPasskey", "device", device, "passkey", passkey)
	return nil
}

func (a *pairingAgent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	a.log.Debug("RequestConfirmation", "device", device, "passkey", passkey)
	return nil
}

func (a *pairingAgent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	a.log.Debug("RequestAuthorization", "device", device)
	return nil
}

func (a *pairingAgent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	a.log.Debug("AuthorizeService", "device", device, "uuid", uuid)
	return nil
}

func (a *pairingAgent) Cancel() *dbus.Error {
	a.log.Debug("Cancel")
	return nil
}

func (a *pairingAgent) Release() *dbus.Error {
	a.log.Debug("Release")
	return nil
}

// RegisterAgent exports and requests the daemon's pairing agent. Exposed on
// Session so startup reconciliation (§4.3 step 3) can call it directly.
func (s *Session) RegisterAgent(ctx context.Context) error {
	s.agent = newPairingAgent(s.log, s.conn)
	return s.agent.register(ctx)
}

// UnregisterAgent reverses RegisterAgent, part of the reverse-startup
// shutdown order (§5).
func (s *Session) UnregisterAgent(ctx context.Context) error {
	if s.agent == nil {
		return nil
	}
	return s.agent.unregister(ctx)
}
