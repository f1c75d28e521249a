package mpdbridge

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/charmbracelet/log"
)

// ProcessBridge spawns one `mpd` daemon per connected device on its
// allocated port and bridges AVRCP/MPRIS commands onto it over MPD's
// plain-text client protocol, grounded on mpd.py's MPDManager. The daemon
// itself ships with the host system; this package only orchestrates it.
type ProcessBridge struct {
	log *log.Logger

	mu        sync.Mutex
	instances map[macaddr.Address]*mpdInstance
}

// NewProcessBridge constructs a ProcessBridge. Each instance is started
// lazily on Start and torn down on Stop.
func NewProcessBridge(logger *log.Logger) *ProcessBridge {
	return &ProcessBridge{
		log:       logger.With("component", "mpdbridge"),
		instances: make(map[macaddr.Address]*mpdInstance),
	}
}

// Start spawns the per-device MPD instance targeting the device's A2DP
// sink. No-op if already running for this address.
func (b *ProcessBridge) Start(address macaddr.Address, port int) {
	b.mu.Lock()
	if _, exists := b.instances[address]; exists {
		b.mu.Unlock()
		return
	}
	inst := newMPDInstance(b.log, address, port)
	b.instances[address] = inst
	b.mu.Unlock()

	if err := inst.start(); err != nil {
		b.log.Warn("mpd instance failed to start", "address", address, "port", port, "error", err)
	}
}

// Stop tears down the MPD instance for address, if any.
func (b *ProcessBridge) Stop(address macaddr.Address) {
	b.mu.Lock()
	inst, exists := b.instances[address]
	delete(b.instances, address)
	b.mu.Unlock()

	if exists {
		inst.stop()
	}
}

// HandleCommand forwards an AVRCP/MPRIS command to the device's running
// MPD instance, if any. Unknown commands and devices with no running
// instance are silently ignored, matching the original bridge's
// best-effort semantics.
func (b *ProcessBridge) HandleCommand(address macaddr.Address, command, detail string) {
	b.mu.Lock()
	inst, exists := b.instances[address]
	b.mu.Unlock()
	if exists {
		inst.handleCommand(command, detail)
	}
}

type mpdInstance struct {
	log     *log.Logger
	address macaddr.Address
	port    int

	tmpDir   string
	confPath string

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
}

func newMPDInstance(logger *log.Logger, address macaddr.Address, port int) *mpdInstance {
	tmpDir := filepath.Join(os.TempDir(), fmt.Sprintf("btaudiod-mpd-%d", port))
	return &mpdInstance{
		log:      logger.With("address", address, "port", port),
		address:  address,
		port:     port,
		tmpDir:   tmpDir,
		confPath: filepath.Join(tmpDir, "mpd.conf"),
	}
}

func (m *mpdInstance) start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	if err := os.MkdirAll(filepath.Join(m.tmpDir, "playlists"), 0o755); err != nil {
		return err
	}
	sinkName := fmt.Sprintf("bluez_sink.%s.a2dp_sink", m.address.Underscored())
	if err := m.writeConfig(sinkName); err != nil {
		return err
	}

	cmd := exec.Command("mpd", "--no-daemon", "--stderr", m.confPath)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	m.cmd = cmd
	m.running = true

	go m.streamStderr(stderr)

	m.log.Info("mpd daemon started")
	return nil
}

func (m *mpdInstance) streamStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			m.log.Debug("mpd", "line", line)
		}
	}
}

func (m *mpdInstance) writeConfig(sinkName string) error {
	state := filepath.Join(m.tmpDir, "state")
	pid := filepath.Join(m.tmpDir, "pid")
	playlists := filepath.Join(m.tmpDir, "playlists")

	config := fmt.Sprintf(`playlist_directory  "%s"
state_file          "%s"
pid_file            "%s"
bind_to_address     "127.0.0.1"
port                "%d"
log_level           "default"

audio_output {
	type    "pulse"
	name    "btaudiod"
	sink    "%s"
}

input {
	plugin  "curl"
}
`, playlists, state, pid, m.port, sinkName)

	return os.WriteFile(m.confPath, []byte(config), 0o644)
}

func (m *mpdInstance) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	m.cmd = nil
	m.log.Info("mpd daemon stopped")
}

// handleCommand dials the instance's client port fresh for every command —
// MPD's text protocol is cheap enough per-connection that a pooled client
// isn't worth the reconnect-on-drop complexity for a button-press cadence.
func (m *mpdInstance) handleCommand(command, detail string) {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", m.port), 2*time.Second)
	if err != nil {
		m.log.Debug("mpd command dial failed", "command", command, "error", err)
		return
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	// Consume the OK MPD <version> banner.
	if _, err := reader.ReadString('\n'); err != nil {
		return
	}

	var line string
	switch strings.ToLower(command) {
	case "play":
		line = "play\n"
	case "pause":
		line = "pause 1\n"
	case "playpause":
		line = "pause\n"
	case "stop":
		line = "stop\n"
	case "next":
		line = "next\n"
	case "previous":
		line = "previous\n"
	case "volume":
		pct := strings.TrimSuffix(strings.SplitN(detail, ".", 2)[0], "%")
		line = fmt.Sprintf("setvol %s\n", pct)
	default:
		return
	}

	if _, err := conn.Write([]byte(line)); err != nil {
		m.log.Debug("mpd command write failed", "command", command, "error", err)
		return
	}
	_, _ = reader.ReadString('\n')
}
