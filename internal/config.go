package internal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

const (
	ConfDir = "/etc/lightning-scb"

	SourceFile = "file"
	SourceREST = "rest"

	TransportStream = "stream"
	TransportFile   = "file"
	TransportNone   = "none"
)

func confDir() string {
	if v := os.Getenv("SCB_CONF_DIR"); v != "" {
		return v
	}
	return ConfDir
}

// ConfPath is the default config file location, honoring SCB_CONF_DIR.
func ConfPath() string {
	return filepath.Join(confDir(), "scb.yaml")
}

func deviceFile() string {
	return filepath.Join(confDir(), "device.conf")
}

func EnsureConfDir() error {
	return os.MkdirAll(confDir(), 0755)
}

func SaveDeviceID(id string) error {
	if err := EnsureConfDir(); err != nil {
		return err
	}
	f, err := os.Create(deviceFile())
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "device_id=%s\n", id)
	return err
}

func LoadDeviceID() (string, error) {
	f, err := os.Open(deviceFile())
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "device_id=") {
			return strings.TrimPrefix(line, "device_id="), nil
		}
	}
	return "", fmt.Errorf("device_id not found in %s", filepath.Base(deviceFile()))
}

// DeviceID loads the persisted device id, creating one on first run.
func DeviceID() (string, error) {
	id, err := LoadDeviceID()
	if err == nil && id != "" {
		return id, nil
	}
	id = GenerateUUID()
	if err := SaveDeviceID(id); err != nil {
		return "", errors.Annotate(err, "save device id")
	}
	return id, nil
}

type FirestoreConfig struct {
	ProjectID   string `yaml:"project_id"`
	Credentials string `yaml:"credentials"`
	// AccountID names the wallet owner's cloud record. It must survive a
	// reinstall, so it is configured rather than generated per device.
	AccountID string `yaml:"account_id"`
}

// Config is the agent's configuration file.
type Config struct {
	// Platform is queried once at startup: "ios" or "android".
	Platform    string `yaml:"platform"`
	Network     string `yaml:"network"`
	Namespace   string `yaml:"namespace"`
	LndDir      string `yaml:"lnd_dir"`
	ExternalDir string `yaml:"external_dir"`
	Source      string `yaml:"source"`
	Transport   string `yaml:"transport"`
	// Permissions is "os" to probe the external dir, or "granted"/"denied".
	Permissions  string          `yaml:"permissions"`
	PollInterval time.Duration   `yaml:"poll_interval"`
	OpTimeout    time.Duration   `yaml:"op_timeout"`
	Daemon       DaemonConfig    `yaml:"daemon"`
	Firestore    FirestoreConfig `yaml:"firestore"`
	MetricsAddr  string          `yaml:"metrics_addr"`
	Log          LogConfig       `yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Network:      "testnet",
		Namespace:    "Lightning",
		LndDir:       filepath.Join(confDir(), "lnd"),
		Source:       SourceFile,
		Transport:    TransportStream,
		Permissions:  "os",
		PollInterval: time.Minute,
		OpTimeout:    30 * time.Second,
		Firestore:    FirestoreConfig{Credentials: filepath.Join(confDir(), "serviceAccountKey.json")},
	}
}

// LoadConfig reads path over the defaults, then applies environment
// overrides. A missing file is fine when required is false.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Annotatef(err, "parse %s", path)
		}
	case os.IsNotExist(err) && !required:
	default:
		return Config{}, errors.Annotatef(err, "read config")
	}
	cfg.applyEnv()
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SCB_PLATFORM"); v != "" {
		c.Platform = v
	}
	if v := os.Getenv("SCB_NETWORK"); v != "" {
		c.Network = v
	}
	if v := os.Getenv("SCB_EXTERNAL_DIR"); v != "" {
		c.ExternalDir = v
	}
	if v := os.Getenv("FIREBASE_PROJECT_ID"); v != "" {
		c.Firestore.ProjectID = v
	}
	if v := os.Getenv("SCB_ACCOUNT_ID"); v != "" {
		c.Firestore.AccountID = v
	}
}

func (c Config) Validate() error {
	if c.Network == "" {
		return errors.NotValidf("empty network")
	}
	if c.Namespace == "" {
		return errors.NotValidf("empty namespace")
	}
	if c.Source == SourceFile && c.LndDir == "" {
		return errors.NotValidf("file source without lnd_dir")
	}
	switch c.Source {
	case SourceFile, SourceREST:
	default:
		return errors.NotValidf("source %q", c.Source)
	}
	switch c.Transport {
	case TransportStream, TransportFile, TransportNone:
	default:
		return errors.NotValidf("transport %q", c.Transport)
	}
	if c.Transport == TransportFile && c.LndDir == "" {
		return errors.NotValidf("file transport without lnd_dir")
	}
	if c.Permissions != "os" {
		if _, err := ParsePermissionState(c.Permissions); err != nil {
			return errors.Trace(err)
		}
	}
	if c.PollInterval <= 0 {
		return errors.NotValidf("poll_interval %s", c.PollInterval)
	}
	if c.OpTimeout <= 0 {
		return errors.NotValidf("op_timeout %s", c.OpTimeout)
	}
	switch c.Platform {
	case PlatformIOS:
		if c.Firestore.ProjectID == "" {
			return errors.NotValidf("ios platform without firestore project_id")
		}
		if c.Firestore.AccountID == "" {
			return errors.NotValidf("ios platform without firestore account_id")
		}
	case PlatformAndroid:
		if c.ExternalDir == "" {
			return errors.NotValidf("android platform without external_dir")
		}
	}
	return nil
}
