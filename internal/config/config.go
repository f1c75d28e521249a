// Package config loads the daemon's static, restart-required
// configuration: an hjson file layered under CLI flags, exactly as the
// teacher's ui/config package does. Runtime knobs that change without a
// restart (bt_adapter, auto_reconnect, reconnect timings) live in
// store.AdapterSettings instead, persisted separately by internal/store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

const (
	configFile    = "btaudiod.conf"
	devicesFile   = "devices.json"
	settingsFile  = "settings.json"
	oldConfigFile = "config"
)

// Config is the loaded daemon configuration plus the resolved directory it
// and the JSON stores live in.
type Config struct {
	path string

	Values Values
}

// NewConfig returns an unloaded Config; call Load to populate it.
func NewConfig() *Config {
	return &Config{Values: defaultValues()}
}

// Load resolves the configuration directory, loads btaudiod.conf, layers
// cliCtx's flags over it, and unmarshals the result into c.Values.
func (c *Config) Load(k *koanf.Koanf, cliCtx *cli.Context) error {
	if err := c.createConfigDir(); err != nil {
		return err
	}

	cfgfile, err := c.FilePath(configFile)
	if err != nil {
		return err
	}

	if err := k.Load(file.Provider(cfgfile), hjson.Parser()); err != nil {
		return err
	}

	if cliCtx != nil {
		if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
			return err
		}
	}

	c.Values = defaultValues()
	if err := k.UnmarshalWithConf("", &c.Values, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return err
	}

	return nil
}

// Validate validates the loaded values that don't require a live bluetooth
// session to judge.
func (c *Config) Validate() error {
	return c.Values.validate()
}

// createConfigDir checks for and/or creates a configuration directory,
// preferring (in order) $XDG_CONFIG_HOME, ~/.config, and /etc — the last
// tier matters here because btaudiod usually runs as a systemd unit under
// a service account with no meaningful $HOME.
func (c *Config) createConfigDir() error {
	homedir, homeErr := os.UserHomeDir()

	type configDir struct {
		path, fullpath string
		prefixHomeDir  bool
	}

	configPaths := []*configDir{
		{path: os.Getenv("XDG_CONFIG_HOME")},
		{path: ".config", prefixHomeDir: true},
		{path: "/etc"},
	}

	for _, dir := range configPaths {
		name := "btaudiod"

		if dir.path == "" {
			continue
		}
		if dir.prefixHomeDir {
			if homeErr != nil {
				continue
			}
			dir.path = filepath.Join(homedir, dir.path)
		}

		dir.fullpath = filepath.Join(dir.path, name)
		if _, err := os.Stat(filepath.Clean(dir.fullpath)); err == nil {
			c.path = dir.fullpath
			break
		}
	}

	if c.path == "" {
		var pathErrors []string

		for _, dir := range configPaths {
			if dir.fullpath == "" {
				continue
			}
			if err := os.MkdirAll(dir.fullpath, os.ModePerm); err == nil {
				c.path = dir.fullpath
				break
			}
			pathErrors = append(pathErrors, dir.fullpath)
		}

		if c.path == "" {
			return fmt.Errorf("the configuration directories could not be created at%s%s", "\n", strings.Join(pathErrors, "\n"))
		}
	}

	return nil
}

// ConfigDir returns the resolved configuration directory, for collaborators
// that need a stable on-disk location outside the koanf-managed files (e.g.
// one-time migration marker files).
func (c *Config) ConfigDir() string {
	return c.path
}

// FilePath returns the absolute path for the given configuration file
// under the resolved configuration directory, creating it if absent.
func (c *Config) FilePath(name string) (string, error) {
	confPath := filepath.Join(c.path, name)

	if _, err := os.Stat(confPath); err != nil {
		fd, createErr := os.Create(confPath)
		if createErr != nil {
			return "", fmt.Errorf("cannot create %s file at %s", name, confPath)
		}
		fd.Close()
	}

	return confPath, nil
}

// DevicesPath returns the path to the device-record store, honoring
// Values.DataDir when the user overrides it away from the config
// directory.
func (c *Config) DevicesPath() (string, error) {
	return c.dataFilePath(devicesFile)
}

// SettingsPath returns the path to the persisted runtime-settings store.
func (c *Config) SettingsPath() (string, error) {
	return c.dataFilePath(settingsFile)
}

// ConfigFilePath returns the path to btaudiod.conf itself, used by the
// reload watcher alongside the two JSON stores.
func (c *Config) ConfigFilePath() (string, error) {
	return c.FilePath(configFile)
}

func (c *Config) dataFilePath(name string) (string, error) {
	if c.Values.DataDir == "" {
		return c.FilePath(name)
	}
	if err := os.MkdirAll(c.Values.DataDir, os.ModePerm); err != nil {
		return "", err
	}
	path := filepath.Join(c.Values.DataDir, name)
	if _, err := os.Stat(path); err != nil {
		fd, createErr := os.Create(path)
		if createErr != nil {
			return "", fmt.Errorf("cannot create %s file at %s", name, path)
		}
		fd.Close()
	}
	return path, nil
}

// GenerateAndSave writes the currently-loaded koanf tree back to
// btaudiod.conf, folding in any values found in a legacy plain key=value
// config file if one exists. Used by the --generate CLI action.
func (c *Config) GenerateAndSave(currentCfg *koanf.Koanf) (bool, error) {
	var parsedOldCfg bool

	cfg, err := c.parseOldConfig(currentCfg)
	if err == nil {
		parsedOldCfg = true
	}

	data, err := hjson.Parser().Marshal(cfg.All())
	if err != nil {
		return parsedOldCfg, err
	}

	conf, err := c.FilePath(configFile)
	if err != nil {
		return parsedOldCfg, err
	}

	f, err := os.OpenFile(conf, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
	if err != nil {
		return parsedOldCfg, err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return parsedOldCfg, err
	}

	return parsedOldCfg, f.Sync()
}

// parseOldConfig folds values from a legacy "key=value"-per-line config
// file into currentCfg, matching the teacher's own one-time migration
// shape for users upgrading from an older release.
func (c *Config) parseOldConfig(currentCfg *koanf.Koanf) (*koanf.Koanf, error) {
	f, err := c.FilePath(oldConfigFile)
	if err != nil {
		return currentCfg, nil
	}

	data, err := os.ReadFile(f)
	if err != nil {
		return currentCfg, fmt.Errorf("the old configuration could not be read")
	}

	k := koanf.New(".")
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}

	if err := k.Merge(currentCfg); err != nil {
		return currentCfg, err
	}

	return k, nil
}
