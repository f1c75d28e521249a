package store

import (
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// AdapterSettings is the persisted-separately runtime configuration of §3.
type AdapterSettings struct {
	BTAdapter           string        `json:"bt_adapter"`
	AutoReconnect       bool          `json:"auto_reconnect"`
	ReconnectInterval   time.Duration `json:"reconnect_interval"`
	ReconnectMaxBackoff time.Duration `json:"reconnect_max_backoff"`
	ScanDuration        time.Duration `json:"scan_duration"`
}

// DefaultAdapterSettings mirrors the quick-retry-head-plus-backoff values
// from §4.6.
func DefaultAdapterSettings() AdapterSettings {
	return AdapterSettings{
		BTAdapter:           "auto",
		AutoReconnect:       true,
		ReconnectInterval:   10 * time.Second,
		ReconnectMaxBackoff: 5 * time.Minute,
		ScanDuration:        10 * time.Second,
	}
}

var legacyIfaceName = regexp.MustCompile(`^hci[0-9]+$`)

// SettingsStore persists AdapterSettings and runs the one-time legacy
// interface-name migration on load.
type SettingsStore struct {
	log  *log.Logger
	path string

	mu       sync.Mutex
	settings AdapterSettings
}

// NewSettingsStore constructs a SettingsStore with defaults; call Load to
// read the persisted document.
func NewSettingsStore(logger *log.Logger, path string) *SettingsStore {
	return &SettingsStore{
		log:      logger.With("component", "settings-store"),
		path:     path,
		settings: DefaultAdapterSettings(),
	}
}

// Load reads the persisted document, if any, filling unset fields from
// DefaultAdapterSettings.
func (s *SettingsStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := DefaultAdapterSettings()
	found, err := readJSON(s.path, &loaded)
	if err != nil {
		return err
	}
	if !found {
		s.settings = loaded
		return nil
	}
	s.settings = loaded
	return nil
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() AdapterSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Set replaces the settings and persists them.
func (s *SettingsStore) Set(next AdapterSettings) error {
	s.mu.Lock()
	s.settings = next
	current := s.settings
	s.mu.Unlock()
	return writeJSONAtomic(s.path, current)
}

// MigrateLegacyAdapterName runs the one-time legacy interface-name → MAC
// address migration (§9) when resolved reports the adapter's real address
// and the persisted bt_adapter still names an hciN-style interface. It is
// a no-op (and never mutates persisted settings) for "auto" or an
// already-resolved address.
func (s *SettingsStore) MigrateLegacyAdapterName(resolvedAddress string) error {
	s.mu.Lock()
	current := s.settings.BTAdapter
	needsMigration := legacyIfaceName.MatchString(current) && resolvedAddress != ""
	if needsMigration {
		s.settings.BTAdapter = resolvedAddress
	}
	next := s.settings
	s.mu.Unlock()

	if !needsMigration {
		return nil
	}
	s.log.Info("migrated legacy adapter interface name", "from", current, "to", resolvedAddress)
	return writeJSONAtomic(s.path, next)
}
