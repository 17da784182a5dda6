package config

import (
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/partdl/internal/utils"
)

// Config holds run settings. A YAML file supplies the same keys as the
// command line flags; flags set explicitly win over the file.
type Config struct {
	Workers          int           `yaml:"workers"`
	Timeout          time.Duration `yaml:"timeout"`
	KeepAliveTimeout time.Duration `yaml:"keep-alive-timeout"`
	UserAgent        string        `yaml:"user-agent"`
	Proxy            string        `yaml:"proxy"`
	ProxyUsername    string        `yaml:"proxy-username"`
	ProxyPassword    string        `yaml:"proxy-password"`
	Headers          []string      `yaml:"headers"`
	MaxRetries       int           `yaml:"max-retries"`
	IdleTimeout      time.Duration `yaml:"idle-timeout"`
	KeepAwake        bool          `yaml:"keep-awake"`
	S3Profile        string        `yaml:"s3-profile"`
	Debug            bool          `yaml:"debug"`
	LogFile          string        `yaml:"log-file"`
}

// Default returns the settings used when neither file nor flags say
// otherwise. Workers of 0 means min(32, 2*CPUs) and MaxRetries of 0
// retries a part for as long as the run lasts.
func Default() Config {
	return Config{
		Timeout:          3 * time.Minute,
		KeepAliveTimeout: 90 * time.Second,
		UserAgent:        utils.ToolUserAgent,
		IdleTimeout:      60 * time.Second,
		KeepAwake:        true,
		S3Profile:        "default",
	}
}

// LoadFromFile overlays the YAML file at path onto Default.
func LoadFromFile(fsys billy.Filesystem, path string) (Config, error) {
	cfg := Default()
	f, err := fsys.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative")
	case c.MaxRetries < 0:
		return fmt.Errorf("max-retries must not be negative")
	case c.Timeout < 0, c.KeepAliveTimeout < 0, c.IdleTimeout < 0:
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (c Config) HTTPClientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:       c.Timeout,
		KATimeout:     c.KeepAliveTimeout,
		ProxyURL:      c.Proxy,
		ProxyUsername: c.ProxyUsername,
		ProxyPassword: c.ProxyPassword,
		UserAgent:     c.UserAgent,
		Headers:       utils.ParseHeaderArgs(c.Headers),
	}
}
