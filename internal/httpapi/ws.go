package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/btorch/btaudiod/internal/events"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// The control plane has no cross-origin browser client; CheckOrigin is
	// left permissive the same way the plain HTTP handlers carry no CORS
	// headers at all.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// handleWS upgrades to a WebSocket and streams the control-plane event feed.
// It replays current state first (devices, sinks, scan status), then the
// MPRIS/AVRCP/log ring buffers, and only subscribes to the live event bus
// afterwards — so a client never sees a live event race ahead of the
// historical replay it depends on to make sense of it (§6).
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Info("ws client connected", "remote", r.RemoteAddr)

	ctx := r.Context()

	if err := s.sendFrame(conn, "devices_changed", map[string]interface{}{
		"devices": buildDeviceList(s.ctrl.Session().EnumerateAudioDevices(s.ctrl.AdapterPath()), s.ctrl.Devices().All()),
	}); err != nil {
		return
	}

	sinks, err := s.ctrl.Pulse().ListBTSinks(ctx)
	if err != nil {
		sinks = nil
	}
	if err := s.sendFrame(conn, "sinks_changed", map[string]interface{}{"sinks": sinkDTOFrom(sinks)}); err != nil {
		return
	}

	if err := s.sendFrame(conn, "scan_state", map[string]interface{}{"scanning": s.ctrl.IsScanning()}); err != nil {
		return
	}

	for _, ev := range s.ctrl.Bus().ReplayMPRIS() {
		if err := s.sendWireEvent(conn, ev); err != nil {
			return
		}
	}
	for _, ev := range s.ctrl.Bus().ReplayAVRCP() {
		if err := s.sendWireEvent(conn, ev); err != nil {
			return
		}
	}
	for _, ev := range s.ctrl.Bus().ReplayLog() {
		if err := s.sendWireEvent(conn, ev); err != nil {
			return
		}
	}

	sub, unsubscribe := s.ctrl.Bus().Subscribe()
	defer unsubscribe()

	go s.drainClientReads(conn)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := s.sendWireEvent(conn, ev); err != nil {
				return
			}
		}
	}
}

// drainClientReads discards anything the client sends so control frames
// (pings/close) are processed and a dead connection is detected; the
// control plane itself is one-directional over this socket.
func (s *Server) drainClientReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) sendFrame(conn *websocket.Conn, frameType string, fields map[string]interface{}) error {
	frame := make(map[string]interface{}, len(fields)+1)
	frame["type"] = frameType
	for k, v := range fields {
		frame[k] = v
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(frame)
}

// sendWireEvent translates an internal events.Event into the §6 wire frame
// shape. device_state and sink_snapshot events carry a re-fetch trigger
// rather than a delta, so the frame sent is always a fresh full snapshot.
// A notice event whose payload carries an "event" discriminator uses it as
// the frame type; any other notice is sent as a "toast" frame.
func (s *Server) sendWireEvent(conn *websocket.Conn, ev events.Event) error {
	switch ev.Kind {
	case events.KindDeviceState:
		return s.sendFrame(conn, "devices_changed", map[string]interface{}{
			"devices": buildDeviceList(s.ctrl.Session().EnumerateAudioDevices(s.ctrl.AdapterPath()), s.ctrl.Devices().All()),
		})

	case events.KindSinkSnapshot:
		sinks, err := s.ctrl.Pulse().ListBTSinks(context.Background())
		if err != nil {
			sinks = nil
		}
		return s.sendFrame(conn, "sinks_changed", map[string]interface{}{"sinks": sinkDTOFrom(sinks)})

	case events.KindMPRIS:
		return s.sendFrame(conn, "mpris_command", toFields(ev.Payload))

	case events.KindAVRCP:
		return s.sendFrame(conn, "avrcp_event", toFields(ev.Payload))

	case events.KindLog:
		return s.sendFrame(conn, "log_entry", toFields(ev.Payload))

	case events.KindNotice:
		fields := toFields(ev.Payload)
		frameType, _ := fields["event"].(string)
		if frameType == "" {
			frameType = "toast"
			fields = map[string]interface{}{"message": ev.Payload}
		} else {
			delete(fields, "event")
		}
		return s.sendFrame(conn, frameType, fields)

	default:
		return nil
	}
}

// toFields coerces an event payload into a field map for merging into a
// wire frame; a payload that isn't already a map (a bare string notice, for
// instance) is wrapped under "detail".
func toFields(payload interface{}) map[string]interface{} {
	switch v := payload.(type) {
	case map[string]interface{}:
		return v
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	default:
		return map[string]interface{}{"detail": v}
	}
}
