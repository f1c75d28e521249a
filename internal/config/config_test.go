package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
)

func newConfigAt(dir string) *Config {
	return &Config{path: dir, Values: defaultValues()}
}

func TestFilePathCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	c := newConfigAt(dir)

	got, err := c.FilePath(configFile)
	if err != nil {
		t.Fatalf("FilePath: %v", err)
	}
	want := filepath.Join(dir, configFile)
	if got != want {
		t.Fatalf("FilePath = %q, want %q", got, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected file to have been created: %v", err)
	}
}

func TestDevicesAndSettingsPathDefaultToConfigDir(t *testing.T) {
	dir := t.TempDir()
	c := newConfigAt(dir)

	devPath, err := c.DevicesPath()
	if err != nil {
		t.Fatalf("DevicesPath: %v", err)
	}
	if devPath != filepath.Join(dir, devicesFile) {
		t.Fatalf("DevicesPath = %q", devPath)
	}

	settingsPath, err := c.SettingsPath()
	if err != nil {
		t.Fatalf("SettingsPath: %v", err)
	}
	if settingsPath != filepath.Join(dir, settingsFile) {
		t.Fatalf("SettingsPath = %q", settingsPath)
	}
}

func TestDevicesPathHonorsDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "data")
	c := newConfigAt(dir)
	c.Values.DataDir = dataDir

	devPath, err := c.DevicesPath()
	if err != nil {
		t.Fatalf("DevicesPath: %v", err)
	}
	if devPath != filepath.Join(dataDir, devicesFile) {
		t.Fatalf("DevicesPath = %q, want under override dir", devPath)
	}
	if _, err := os.Stat(devPath); err != nil {
		t.Fatalf("expected file under data dir to exist: %v", err)
	}
}

func TestParseOldConfigMergesLegacyKeyValueFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, oldConfigFile), []byte("adapter=hci0\nlog_level=debug\n\n# comment-ish line ignored\n"), 0o644); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}
	c := newConfigAt(dir)

	current := koanf.New(".")
	merged, err := c.parseOldConfig(current)
	if err != nil {
		t.Fatalf("parseOldConfig: %v", err)
	}
	if got := merged.String("adapter"); got != "hci0" {
		t.Fatalf("adapter = %q, want hci0", got)
	}
	if got := merged.String("log_level"); got != "debug" {
		t.Fatalf("log_level = %q, want debug", got)
	}
}

func TestParseOldConfigNoLegacyFileReturnsInputUnchanged(t *testing.T) {
	dir := t.TempDir()
	c := newConfigAt(dir)

	current := koanf.New(".")
	current.Set("adapter", "auto")

	merged, err := c.parseOldConfig(current)
	if err != nil {
		t.Fatalf("parseOldConfig: %v", err)
	}
	if merged.String("adapter") != "auto" {
		t.Fatalf("adapter = %q, want auto", merged.String("adapter"))
	}
}

func TestGenerateAndSaveWritesConfigFile(t *testing.T) {
	dir := t.TempDir()
	c := newConfigAt(dir)

	current := koanf.New(".")
	current.Set("adapter", "auto")
	current.Set("log-level", "info")

	if _, err := c.GenerateAndSave(current); err != nil {
		t.Fatalf("GenerateAndSave: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		t.Fatalf("read generated config: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected generated config file to be non-empty")
	}
}
