package config

import (
	"fmt"
	"strings"
)

// Values describes the static, restart-required configuration a user can
// supply via the hjson file or CLI flags, layered the same way the
// teacher's ui/config.Values is: flags win over the file, the file wins
// over defaults.
type Values struct {
	Adapter    string `koanf:"adapter"`
	LogLevel   string `koanf:"log-level"`
	LogFormat  string `koanf:"log-format"`
	HTTPListen string `koanf:"http-listen"`
	DataDir    string `koanf:"data-dir"`
}

// defaultValues mirrors config.py's AppConfig field defaults, translated
// to the daemon's own knob names.
func defaultValues() Values {
	return Values{
		Adapter:    "auto",
		LogLevel:   "info",
		LogFormat:  "text",
		HTTPListen: ":8642",
		DataDir:    "",
	}
}

// validate checks the values a bluetooth session isn't required to judge.
func (v *Values) validate() error {
	for _, validate := range []func() error{
		v.validateLogLevel,
		v.validateLogFormat,
		v.validateHTTPListen,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Values) validateLogLevel() error {
	switch strings.ToLower(v.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log-level: %q is not one of debug, info, warn, error", v.LogLevel)
	}
}

func (v *Values) validateLogFormat() error {
	switch strings.ToLower(v.LogFormat) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("log-format: %q is not one of text, json", v.LogFormat)
	}
}

func (v *Values) validateHTTPListen() error {
	if v.HTTPListen == "" {
		return fmt.Errorf("http-listen: must not be empty")
	}
	if !strings.Contains(v.HTTPListen, ":") {
		return fmt.Errorf("http-listen: %q must be a host:port or :port address", v.HTTPListen)
	}
	return nil
}
