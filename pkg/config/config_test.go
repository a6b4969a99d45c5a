package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanEnv isolates a test from the caller's environment and home directory
func cleanEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"OCB_REGION", "OCB_LOG_FILE", "OCB_LOG_LEVEL", "OCB_SHORT_DELAY",
		"OCB_INSTANCE_WAIT_TIMEOUT", "OCB_LB_POLL_ATTEMPTS", "OCB_API_RATE_LIMIT",
		"OCB_API_BURST", "OCB_IP_ECHO_URL", "OCB_INSECURE", "OCB_DEFAULT_ENDPOINTS",
		"FCU_ENDPOINT", "LBU_ENDPOINT", "EIM_ENDPOINT", "OSU_ENDPOINT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	return home
}

func writeINI(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaultBuilderConfig(t *testing.T) {
	cfg := DefaultBuilderConfig()

	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}

	assert.Equal(t, "eu-west-2", cfg.Region)
	assert.Equal(t, "/tmp/ocb.log", cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ShortDelay)
	assert.Equal(t, 120*time.Second, cfg.InstanceWaitTimeout)
	assert.Equal(t, 42, cfg.LoadBalancerPollAttempts)
	assert.Equal(t, 10.0, cfg.APIRateLimit)
	assert.Equal(t, 20, cfg.APIBurst)
	assert.Equal(t, "https://ifconfig.io/all.json", cfg.IPEchoURL)
	assert.Equal(t, "/etc/osc_cloud_builder/services.ini", cfg.SettingsPaths[len(cfg.SettingsPaths)-1])
}

func TestLoadBuilderConfig_MissingCredentials(t *testing.T) {
	cleanEnv(t)

	tests := []struct {
		name string
		ak   string
		sk   string
	}{
		{"no access key", "", "secret"},
		{"no secret key", "AKIATEST", ""},
		{"neither", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_ACCESS_KEY_ID", tt.ak)
			t.Setenv("AWS_SECRET_ACCESS_KEY", tt.sk)

			cfg, _, err := LoadBuilderConfig()
			assert.ErrorIs(t, err, ErrMissingCredentials)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadBuilderConfig_EnvironmentOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("OCB_REGION", "us-east-2")
	t.Setenv("OCB_LOG_FILE", "/var/log/ocb.log")
	t.Setenv("OCB_LOG_LEVEL", "debug")
	t.Setenv("OCB_SHORT_DELAY", "2s")
	t.Setenv("OCB_INSTANCE_WAIT_TIMEOUT", "5m")
	t.Setenv("OCB_LB_POLL_ATTEMPTS", "7")
	t.Setenv("OCB_API_RATE_LIMIT", "2.5")
	t.Setenv("OCB_API_BURST", "4")
	t.Setenv("OCB_IP_ECHO_URL", "http://127.0.0.1:9999/ip")
	t.Setenv("OCB_INSECURE", "true")
	t.Setenv("FCU_ENDPOINT", "fcu.example.com")
	t.Setenv("LBU_ENDPOINT", "lbu.example.com")

	cfg, warnings, err := LoadBuilderConfig()
	require.NoError(t, err)

	assert.Equal(t, "us-east-2", cfg.Region)
	assert.Equal(t, "AKIATEST", cfg.AccessKeyID)
	assert.Equal(t, "secret", cfg.SecretAccessKey)
	assert.Equal(t, "/var/log/ocb.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.ShortDelay)
	assert.Equal(t, 5*time.Minute, cfg.InstanceWaitTimeout)
	assert.Equal(t, 7, cfg.LoadBalancerPollAttempts)
	assert.Equal(t, 2.5, cfg.APIRateLimit)
	assert.Equal(t, 4, cfg.APIBurst)
	assert.Equal(t, "http://127.0.0.1:9999/ip", cfg.IPEchoURL)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "fcu.example.com", cfg.Endpoints.Compute)
	assert.Equal(t, "lbu.example.com", cfg.Endpoints.LoadBalancer)
	assert.Empty(t, cfg.Endpoints.Identity)
	assert.Empty(t, cfg.Endpoints.ObjectStorage)
	assert.ElementsMatch(t, []Warning{"No eim_endpoint set", "No osu_endpoint set"}, warnings)
}

func TestLoadBuilderConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"OCB_SHORT_DELAY", "soon"},
		{"OCB_INSTANCE_WAIT_TIMEOUT", "10"},
		{"OCB_LB_POLL_ATTEMPTS", "many"},
		{"OCB_API_RATE_LIMIT", "fast"},
		{"OCB_API_BURST", "1.5"},
		{"OCB_INSECURE", "maybe"},
		{"OCB_DEFAULT_ENDPOINTS", "sure"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(tt.key, tt.value)

			_, _, err := LoadBuilderConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadEndpoints_FromINI(t *testing.T) {
	home := cleanEnv(t)
	writeINI(t, filepath.Join(home, ".osc_cloud_builder", "services.ini"), `
[eu-west-2]
fcu_endpoint = fcu.eu-west-2.outscale.com
lbu_endpoint = lbu.eu-west-2.outscale.com
eim_endpoint = eim.eu-west-2.outscale.com
osu_endpoint = osu.eu-west-2.outscale.com

[us-east-2]
fcu_endpoint = fcu.us-east-2.outscale.com
`)
	t.Setenv("LBU_ENDPOINT", "lbu.override.example.com")

	cfg, warnings, err := LoadBuilderConfig()
	require.NoError(t, err)

	assert.Empty(t, warnings)
	assert.Equal(t, "fcu.eu-west-2.outscale.com", cfg.Endpoints.Compute)
	assert.Equal(t, "lbu.override.example.com", cfg.Endpoints.LoadBalancer, "environment wins over the file")
	assert.Equal(t, "eim.eu-west-2.outscale.com", cfg.Endpoints.Identity)
	assert.Equal(t, "osu.eu-west-2.outscale.com", cfg.Endpoints.ObjectStorage)
}

func TestLoadEndpoints_FirstFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "user", "services.ini")
	second := filepath.Join(dir, "system", "services.ini")
	writeINI(t, first, "[eu-west-2]\nfcu_endpoint = fcu.user.example.com\n")
	writeINI(t, second, "[eu-west-2]\nfcu_endpoint = fcu.system.example.com\nosu_endpoint = osu.system.example.com\n")
	cleanEnv(t)

	cfg := DefaultBuilderConfig()
	cfg.SettingsPaths = []string{filepath.Join(dir, "missing.ini"), first, second}

	warnings, err := cfg.LoadEndpoints()
	require.NoError(t, err)
	assert.Equal(t, "fcu.user.example.com", cfg.Endpoints.Compute)
	assert.Empty(t, cfg.Endpoints.ObjectStorage, "only the first existing file is read")
	assert.Len(t, warnings, 3)
}

func TestLoadEndpoints_MissingRegionSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.ini")
	writeINI(t, path, "[us-east-2]\nfcu_endpoint = fcu.us-east-2.example.com\n")
	cleanEnv(t)

	cfg := DefaultBuilderConfig()
	cfg.SettingsPaths = []string{path}

	_, err := cfg.LoadEndpoints()
	require.NoError(t, err)
	assert.Empty(t, cfg.Endpoints.Compute)
}

func TestLoadEndpoints_DefaultEndpointsSuppressesWarnings(t *testing.T) {
	cleanEnv(t)
	t.Setenv("OCB_DEFAULT_ENDPOINTS", "true")

	cfg, warnings, err := LoadBuilderConfig()
	require.NoError(t, err)
	assert.True(t, cfg.UseDefaultEndpoints)
	assert.Empty(t, warnings)
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		insecure bool
		endpoint string
		expected string
	}{
		{"empty", false, "", ""},
		{"bare host", false, "fcu.example.com", "https://fcu.example.com"},
		{"bare host insecure", true, "fcu.example.com", "http://fcu.example.com"},
		{"explicit https", true, "https://fcu.example.com", "https://fcu.example.com"},
		{"explicit http", false, "http://localhost:4566", "http://localhost:4566"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBuilderConfig()
			cfg.Insecure = tt.insecure
			assert.Equal(t, tt.expected, cfg.EndpointURL(tt.endpoint))
		})
	}
}
