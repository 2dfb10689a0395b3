// Package config handles loading and validation of the shim harness
// configuration. Development reads env vars or CONFIG_FILE; production reads
// the shim settings from Secret Manager.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"drm-shim/internal/devicestub"
	"drm-shim/internal/interception"
	"drm-shim/internal/keysystem"
	"drm-shim/internal/model"
)

// Config holds all harness configuration.
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"
	LogFile     string // optional rotated log file, in addition to stdout

	// GCP settings (required in production)
	GCPProject string
	ShimID     string

	Shim ShimConfig
}

// ShimConfig is the shim-specific part of the configuration. In production it
// is stored as one JSON secret.
type ShimConfig struct {
	// UpstreamLicenseURL is the base URL license requests are proxied to.
	UpstreamLicenseURL string `json:"upstream_license_url"`
	// UpstreamTimeoutSeconds bounds one upstream dispatch.
	UpstreamTimeoutSeconds int `json:"upstream_timeout_seconds,omitempty"`

	Rewrite RewriteConfig `json:"rewrite"`
	Device  DeviceConfig  `json:"device"`
}

// RewriteConfig holds the key system substitution and interception rules.
// Empty fields take the interception and keysystem package defaults.
type RewriteConfig struct {
	UnsupportedToken   string `json:"unsupported_token,omitempty"`
	SupportedKeySystem string `json:"supported_key_system,omitempty"`
	LicenseURLPath     string `json:"license_url_path,omitempty"`
	KeySystemParam     string `json:"key_system_param,omitempty"`
	UnsupportedPath    string `json:"unsupported_path,omitempty"`
	SupportedPath      string `json:"supported_path,omitempty"`
	FallbackStatus     int    `json:"fallback_status,omitempty"`
}

// DeviceConfig describes the emulated device.
type DeviceConfig struct {
	ModelName  string `json:"model_name,omitempty"`
	Platform   string `json:"platform,omitempty"`
	SDKVersion string `json:"sdk_version,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	Country    string `json:"country,omitempty"`
	Locale     string `json:"locale,omitempty"`
	// Robustness lists the levels the emulated CDM accepts for the supported
	// key system. "" accepts capabilities without robustness.
	Robustness []string `json:"robustness,omitempty"`
}

const defaultUpstreamTimeout = 10 * time.Second

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → env vars / Secret Manager.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		ShimID:      envOrDefault("SHIM_ID", "drm-shim"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading shim config: %w", err)
	}

	cfg.Shim.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string     `json:"port"`
		Environment string     `json:"environment"`
		LogLevel    string     `json:"log_level"`
		LogFile     string     `json:"log_file"`
		ShimID      string     `json:"shim_id"`
		Shim        ShimConfig `json:"shim"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		LogFile:     fileConfig.LogFile,
		ShimID:      withDefault(fileConfig.ShimID, "drm-shim"),
		Shim:        fileConfig.Shim,
	}

	cfg.Shim.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches the shim config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{shim_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.ShimID)
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Shim); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads the shim config from individual environment variables.
func (c *Config) loadFromEnv() error {
	c.Shim = ShimConfig{
		UpstreamLicenseURL: os.Getenv("UPSTREAM_LICENSE_URL"),
		Rewrite: RewriteConfig{
			UnsupportedToken:   os.Getenv("UNSUPPORTED_TOKEN"),
			SupportedKeySystem: os.Getenv("SUPPORTED_KEY_SYSTEM"),
			LicenseURLPath:     os.Getenv("LICENSE_URL_PATH"),
			KeySystemParam:     os.Getenv("KEY_SYSTEM_PARAM"),
			UnsupportedPath:    os.Getenv("UNSUPPORTED_LICENSE_PATH"),
			SupportedPath:      os.Getenv("SUPPORTED_LICENSE_PATH"),
		},
		Device: DeviceConfig{
			ModelName:  os.Getenv("DEVICE_MODEL_NAME"),
			Platform:   os.Getenv("DEVICE_PLATFORM"),
			SDKVersion: os.Getenv("DEVICE_SDK_VERSION"),
			DeviceID:   os.Getenv("DEVICE_ID"),
			Country:    os.Getenv("DEVICE_COUNTRY"),
			Locale:     os.Getenv("DEVICE_LOCALE"),
		},
	}

	if v := os.Getenv("UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing UPSTREAM_TIMEOUT_SECONDS: %w", err)
		}
		c.Shim.UpstreamTimeoutSeconds = n
	}
	if v := os.Getenv("FALLBACK_STATUS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing FALLBACK_STATUS: %w", err)
		}
		c.Shim.Rewrite.FallbackStatus = n
	}
	// DEVICE_ROBUSTNESS is a comma-separated list; an empty element accepts
	// capabilities without robustness.
	if v, ok := os.LookupEnv("DEVICE_ROBUSTNESS"); ok {
		c.Shim.Device.Robustness = strings.Split(v, ",")
		for i := range c.Shim.Device.Robustness {
			c.Shim.Device.Robustness[i] = strings.TrimSpace(c.Shim.Device.Robustness[i])
		}
	}
	return nil
}

// applyDefaults fills empty fields with the package defaults.
func (s *ShimConfig) applyDefaults() {
	if s.UpstreamTimeoutSeconds == 0 {
		s.UpstreamTimeoutSeconds = int(defaultUpstreamTimeout / time.Second)
	}

	r := &s.Rewrite
	r.UnsupportedToken = withDefault(r.UnsupportedToken, keysystem.DefaultUnsupportedToken)
	r.SupportedKeySystem = withDefault(r.SupportedKeySystem, keysystem.DefaultSupportedKeySystem)
	r.LicenseURLPath = withDefault(r.LicenseURLPath, interception.DefaultLicenseURLPath)
	r.KeySystemParam = withDefault(r.KeySystemParam, interception.DefaultKeySystemParam)
	r.UnsupportedPath = withDefault(r.UnsupportedPath, interception.DefaultUnsupportedPath)
	r.SupportedPath = withDefault(r.SupportedPath, interception.DefaultSupportedPath)
	if r.FallbackStatus == 0 {
		r.FallbackStatus = interception.DefaultFallbackTrigger
	}

	def := devicestub.DefaultIdentity()
	d := &s.Device
	d.ModelName = withDefault(d.ModelName, def.ModelName)
	d.Platform = withDefault(d.Platform, def.Platform)
	d.SDKVersion = withDefault(d.SDKVersion, def.SDKVersion)
	d.DeviceID = withDefault(d.DeviceID, def.DeviceID)
	d.Country = withDefault(d.Country, def.Country)
	d.Locale = withDefault(d.Locale, def.Locale)
	if d.Robustness == nil {
		d.Robustness = []string{
			string(model.RobustnessSWSecureDecode),
			string(model.RobustnessSWSecureCrypto),
			string(model.RobustnessUnset),
		}
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Shim.UpstreamLicenseURL == "" {
		return fmt.Errorf("upstream_license_url is required")
	}
	u, err := url.Parse(c.Shim.UpstreamLicenseURL)
	if err != nil {
		return fmt.Errorf("invalid upstream_license_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream_license_url must be http or https, got %q", u.Scheme)
	}
	if c.Shim.UpstreamTimeoutSeconds < 0 {
		return fmt.Errorf("upstream_timeout_seconds must not be negative")
	}

	r := c.Shim.Rewrite
	if r.FallbackStatus < 100 || r.FallbackStatus > 599 {
		return fmt.Errorf("fallback_status %d is not an HTTP status", r.FallbackStatus)
	}
	if r.UnsupportedPath == r.SupportedPath {
		return fmt.Errorf("unsupported_path and supported_path must differ")
	}

	if err := c.Identity().Validate(); err != nil {
		return fmt.Errorf("invalid device config: %w", err)
	}
	for _, level := range c.Shim.Device.Robustness {
		if !knownRobustness(model.Robustness(level)) {
			return fmt.Errorf("unknown robustness %q", level)
		}
	}
	return nil
}

func knownRobustness(r model.Robustness) bool {
	for _, level := range model.RobustnessLevels {
		if r == level {
			return true
		}
	}
	return false
}

// Policy returns the key system substitution policy.
func (c *Config) Policy() keysystem.Policy {
	return keysystem.Policy{
		UnsupportedToken:   c.Shim.Rewrite.UnsupportedToken,
		SupportedKeySystem: c.Shim.Rewrite.SupportedKeySystem,
	}
}

// Rules returns the interception rules. They share Policy with negotiation.
func (c *Config) Rules() interception.Rules {
	r := c.Shim.Rewrite
	return interception.Rules{
		Rewrite: interception.QueryRewrite{
			PathPattern: r.LicenseURLPath,
			Param:       r.KeySystemParam,
			Policy:      c.Policy(),
		},
		Fallback: interception.FallbackPolicy{
			TriggerStatus: r.FallbackStatus,
			From:          r.UnsupportedPath,
			To:            r.SupportedPath,
		},
	}
}

// Identity returns the emulated device identity.
func (c *Config) Identity() devicestub.Identity {
	d := c.Shim.Device
	return devicestub.Identity{
		ModelName:    d.ModelName,
		Platform:     d.Platform,
		SDKVersion:   d.SDKVersion,
		DeviceID:     d.DeviceID,
		Country:      d.Country,
		Locale:       d.Locale,
		LaunchParams: map[string]string{},
	}
}

// AcceptedRobustness returns the robustness levels the emulated CDM accepts,
// keyed by key system. Only the supported key system is available.
func (c *Config) AcceptedRobustness() map[string][]model.Robustness {
	levels := make([]model.Robustness, len(c.Shim.Device.Robustness))
	for i, r := range c.Shim.Device.Robustness {
		levels[i] = model.Robustness(r)
	}
	return map[string][]model.Robustness{c.Policy().Supported(): levels}
}

// UpstreamTimeout returns the per-dispatch upstream timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Shim.UpstreamTimeoutSeconds) * time.Second
}

// UpstreamURL joins path and rawQuery onto the upstream license base URL.
func (c *Config) UpstreamURL(path, rawQuery string) string {
	out := strings.TrimSuffix(c.Shim.UpstreamLicenseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if rawQuery != "" {
		out += "?" + rawQuery
	}
	return out
}

func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
