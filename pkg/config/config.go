// Package config loads credentials, service endpoints and workflow timing for
// the VPC builder from the environment and an optional services.ini file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// ErrMissingCredentials is returned when the access key or secret key is unset
var ErrMissingCredentials = errors.New("both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")

// Endpoints holds one endpoint per cloud service. An empty value means the
// service is not configured and its client is left nil.
type Endpoints struct {
	// Compute is the FCU / EC2 endpoint
	Compute string
	// LoadBalancer is the LBU / ELB endpoint
	LoadBalancer string
	// Identity is the EIM / IAM endpoint
	Identity string
	// ObjectStorage is the OSU / S3 endpoint
	ObjectStorage string
}

// BuilderConfig holds configuration for the VPC builder workflows
type BuilderConfig struct {
	// Region selects the services.ini section and signs requests
	Region string
	// Credentials
	AccessKeyID     string
	SecretAccessKey string
	// Endpoints per service
	Endpoints Endpoints
	// UseDefaultEndpoints builds every client with the SDK's resolved endpoint
	// for Region instead of requiring explicit endpoints
	UseDefaultEndpoints bool
	// Insecure uses plain http for endpoints given without a scheme
	Insecure bool
	// SettingsPaths are searched in order for services.ini
	SettingsPaths []string

	// LogFile receives workflow logs
	LogFile string
	// LogLevel is one of debug, info, warn or error
	LogLevel string

	// ShortDelay is the fixed pause between dependent calls and between polls
	ShortDelay time.Duration
	// InstanceWaitTimeout bounds every instance state wait
	InstanceWaitTimeout time.Duration
	// LoadBalancerPollAttempts bounds the wait for deleted load balancers to disappear
	LoadBalancerPollAttempts int
	// APIRateLimit is the sustained number of API calls per second
	APIRateLimit float64
	// APIBurst is the API rate limiter burst
	APIBurst int
	// IPEchoURL returns the caller's public IP as JSON
	IPEchoURL string
}

// DefaultSettingsPaths returns the services.ini search path
func DefaultSettingsPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".osc_cloud_builder", "services.ini"))
	}
	return append(paths, "/etc/osc_cloud_builder/services.ini")
}

// DefaultBuilderConfig returns the default configuration for the builder
func DefaultBuilderConfig() *BuilderConfig {
	return &BuilderConfig{
		Region:                   "eu-west-2",
		SettingsPaths:            DefaultSettingsPaths(),
		LogFile:                  "/tmp/ocb.log",
		LogLevel:                 "info",
		ShortDelay:               5 * time.Second,
		InstanceWaitTimeout:      120 * time.Second,
		LoadBalancerPollAttempts: 42,
		APIRateLimit:             10,
		APIBurst:                 20,
		IPEchoURL:                "https://ifconfig.io/all.json",
	}
}

// Warning describes a non-fatal configuration problem, such as a service
// without an endpoint
type Warning string

// LoadBuilderConfig loads builder configuration from environment variables and
// the first services.ini found on the search path. Environment values take
// precedence over the file. The returned warnings name services left without
// an endpoint.
func LoadBuilderConfig() (*BuilderConfig, []Warning, error) {
	config := DefaultBuilderConfig()

	if region := os.Getenv("OCB_REGION"); region != "" {
		config.Region = region
	}

	config.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	config.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	if config.AccessKeyID == "" || config.SecretAccessKey == "" {
		return nil, nil, ErrMissingCredentials
	}

	if logFile, ok := os.LookupEnv("OCB_LOG_FILE"); ok {
		config.LogFile = logFile
	}
	if level := os.Getenv("OCB_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	if delayStr := os.Getenv("OCB_SHORT_DELAY"); delayStr != "" {
		delay, err := time.ParseDuration(delayStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_SHORT_DELAY: %v", err)
		}
		config.ShortDelay = delay
	}

	if timeoutStr := os.Getenv("OCB_INSTANCE_WAIT_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_INSTANCE_WAIT_TIMEOUT: %v", err)
		}
		config.InstanceWaitTimeout = timeout
	}

	if attemptsStr := os.Getenv("OCB_LB_POLL_ATTEMPTS"); attemptsStr != "" {
		attempts, err := strconv.Atoi(attemptsStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_LB_POLL_ATTEMPTS: %v", err)
		}
		config.LoadBalancerPollAttempts = attempts
	}

	if rateStr := os.Getenv("OCB_API_RATE_LIMIT"); rateStr != "" {
		limit, err := strconv.ParseFloat(rateStr, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_API_RATE_LIMIT: %v", err)
		}
		config.APIRateLimit = limit
	}

	if burstStr := os.Getenv("OCB_API_BURST"); burstStr != "" {
		burst, err := strconv.Atoi(burstStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_API_BURST: %v", err)
		}
		config.APIBurst = burst
	}

	if url := os.Getenv("OCB_IP_ECHO_URL"); url != "" {
		config.IPEchoURL = url
	}

	if insecureStr := os.Getenv("OCB_INSECURE"); insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_INSECURE: %v", err)
		}
		config.Insecure = insecure
	}

	if defaultStr := os.Getenv("OCB_DEFAULT_ENDPOINTS"); defaultStr != "" {
		useDefault, err := strconv.ParseBool(defaultStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OCB_DEFAULT_ENDPOINTS: %v", err)
		}
		config.UseDefaultEndpoints = useDefault
	}

	warnings, err := config.LoadEndpoints()
	if err != nil {
		return nil, nil, err
	}

	return config, warnings, nil
}

// LoadEndpoints fills Endpoints from FCU_ENDPOINT, LBU_ENDPOINT, EIM_ENDPOINT
// and OSU_ENDPOINT, falling back to the Region section of services.ini.
func (c *BuilderConfig) LoadEndpoints() ([]Warning, error) {
	fromFile, err := loadEndpointsFromINI(c.SettingsPaths, c.Region)
	if err != nil {
		return nil, err
	}

	var warnings []Warning
	resolve := func(envKey, iniKey, current string) string {
		if current != "" {
			return current
		}
		if v := os.Getenv(envKey); v != "" {
			return v
		}
		if v := fromFile[iniKey]; v != "" {
			return v
		}
		if !c.UseDefaultEndpoints {
			warnings = append(warnings, Warning(fmt.Sprintf("No %s set", iniKey)))
		}
		return ""
	}

	c.Endpoints.Compute = resolve("FCU_ENDPOINT", "fcu_endpoint", c.Endpoints.Compute)
	c.Endpoints.LoadBalancer = resolve("LBU_ENDPOINT", "lbu_endpoint", c.Endpoints.LoadBalancer)
	c.Endpoints.Identity = resolve("EIM_ENDPOINT", "eim_endpoint", c.Endpoints.Identity)
	c.Endpoints.ObjectStorage = resolve("OSU_ENDPOINT", "osu_endpoint", c.Endpoints.ObjectStorage)

	return warnings, nil
}

// loadEndpointsFromINI reads the region section of the first existing
// settings file. No file, or no such section, yields an empty map.
func loadEndpointsFromINI(paths []string, region string) (map[string]string, error) {
	values := map[string]string{}

	var settingsPath string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			settingsPath = p
			break
		}
	}
	if settingsPath == "" {
		return values, nil
	}

	file, err := ini.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}

	section, err := file.GetSection(region)
	if err != nil {
		return values, nil
	}
	for _, key := range []string{"fcu_endpoint", "lbu_endpoint", "eim_endpoint", "osu_endpoint"} {
		if section.HasKey(key) {
			values[key] = strings.TrimSpace(section.Key(key).String())
		}
	}
	return values, nil
}

// EndpointURL turns a bare host such as "fcu.eu-west-2.outscale.com" into a
// URL, keeping an explicit scheme when one is given.
func (c *BuilderConfig) EndpointURL(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if c.Insecure {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}
