// Package sshexec runs commands on freshly provisioned instances over SSH.
//
// Instances usually refuse connections for a while after they report running,
// so connecting is retried a fixed number of times before giving up. Host key
// verification is disabled unless a HostKeyCallback is configured.
package sshexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/aws/retry"
	"golang.org/x/crypto/ssh"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultUser        = "root"
	DefaultPort        = 22
	DefaultAttempts    = 10
	DefaultDialTimeout = 120 * time.Second
	DefaultRetryDelay  = 5 * time.Second
)

// Config validation errors
var (
	ErrNilConfig     = errors.New("config cannot be nil")
	ErrEmptyHost     = errors.New("config host cannot be empty")
	ErrEmptyKey      = errors.New("config private key cannot be empty")
	ErrInvalidPort   = errors.New("config port out of range")
	ErrConnectFailed = errors.New("failed to establish SSH connection")
)

// Config holds SSH client configuration. Zero values take the package defaults.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout bounds a single connection attempt, handshake included
	DialTimeout time.Duration
	Attempts    int
	RetryDelay  time.Duration

	HostKeyCallback ssh.HostKeyCallback
}

// Client executes commands on one host. Every Run opens its own connection.
type Client struct {
	config Config
	signer ssh.Signer
	log    logr.Logger
}

// NewClient validates cfg and parses the private key
func NewClient(cfg *Config, logger logr.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Host == "" {
		return nil, ErrEmptyHost
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, ErrEmptyKey
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Port)
	}

	c := *cfg
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Attempts == 0 {
		c.Attempts = DefaultAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.HostKeyCallback == nil {
		c.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // throwaway test instances
	}

	signer, err := ssh.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: c,
		signer: signer,
		log:    logger.WithName("ssh").WithValues("host", c.Host, "user", c.User),
	}, nil
}

// Addr returns host:port
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Run executes command and returns its combined stdout and stderr
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", c.Addr(), err)
	}
	defer func() { _ = session.Close() }()

	c.log.V(1).Info("Running command", "command", command)
	output, err := session.CombinedOutput(command)
	if err != nil {
		return string(output), fmt.Errorf("command %q failed on %s: %w", command, c.Addr(), err)
	}
	return string(output), nil
}

// connect dials until the handshake succeeds or the attempts run out
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	clientConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}
	backoff := wait.Backoff{
		Steps:    c.config.Attempts,
		Duration: c.config.RetryDelay,
		Factor:   1.0,
	}

	var client *ssh.Client
	attempt := 0
	err := retry.WithExponentialBackoff(ctx, c.log, "connect", func() (bool, error) {
		attempt++
		var err error
		client, err = c.dial(ctx, clientConfig)
		if err != nil {
			c.log.V(1).Info("Connection attempt failed", "attempt", attempt, "error", err.Error())
			return false, err
		}
		return true, nil
	}, func(err error) bool { return ctx.Err() == nil }, backoff)
	if err != nil {
		return nil, fmt.Errorf("%w to %s after %d attempts: %w", ErrConnectFailed, c.Addr(), attempt, err)
	}
	c.log.V(1).Info("Connected", "attempts", attempt)
	return client, nil
}

func (c *Client) dial(ctx context.Context, clientConfig *ssh.ClientConfig) (*ssh.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	addr := c.Addr()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}
