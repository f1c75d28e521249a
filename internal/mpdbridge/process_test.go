package mpdbridge

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/charmbracelet/log"
)

func newTestLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestProcessBridgeStopUnknownAddressIsNoop(t *testing.T) {
	b := NewProcessBridge(newTestLogger())
	b.Stop(macaddr.MustParse("AA:BB:CC:DD:EE:01"))
}

func TestProcessBridgeHandleCommandUnknownAddressIsNoop(t *testing.T) {
	b := NewProcessBridge(newTestLogger())
	b.HandleCommand(macaddr.MustParse("AA:BB:CC:DD:EE:01"), "play", "")
}

func TestMPDInstanceWriteConfigEmbedsSinkAndPort(t *testing.T) {
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	inst := newMPDInstance(newTestLogger(), addr, 6601)

	if err := os.MkdirAll(inst.tmpDir, 0o755); err != nil {
		t.Fatalf("mkdir tmp dir: %v", err)
	}
	defer os.RemoveAll(inst.tmpDir)

	sinkName := "bluez_sink." + addr.Underscored() + ".a2dp_sink"
	if err := inst.writeConfig(sinkName); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	data, err := os.ReadFile(inst.confPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `port                "6601"`) {
		t.Fatalf("config missing port: %s", content)
	}
	if !strings.Contains(content, sinkName) {
		t.Fatalf("config missing sink name: %s", content)
	}
}

func TestMPDInstanceHandleCommandWhenNotRunningIsNoop(t *testing.T) {
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	inst := newMPDInstance(newTestLogger(), addr, 6602)
	// Never started: handleCommand should bail out before dialing anything.
	inst.handleCommand("play", "")
}

func TestMPDInstanceStopWhenNotRunningIsNoop(t *testing.T) {
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	inst := newMPDInstance(newTestLogger(), addr, 6603)
	inst.stop()
}
