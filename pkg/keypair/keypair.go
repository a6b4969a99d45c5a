// Package keypair creates SSH key pairs on the compute API and stores the
// private key material on local disk.
package keypair

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/aws"
	"github.com/johnlam90/vpc-builder/pkg/observability"
)

// DefaultDirectory holds generated private keys
const DefaultDirectory = "/tmp/keytest.rsa.d/"

const (
	namePrefix = "test_key_"
	keySuffix  = ".pem"
	dirMode    = 0o700
	keyMode    = 0o600
)

var (
	// ErrKeyFileExists is returned when the private key file is already on disk
	ErrKeyFileExists = errors.New("key file already exists")
	// ErrNoKeyMaterial is returned when the API answers without a private key
	ErrNoKeyMaterial = errors.New("no key material returned")
)

// KeyPair describes a created key pair and where its private key was written
type KeyPair struct {
	Name      string
	Directory string
	Path      string
}

// DefaultName returns a name unique to the second, e.g. test_key__14_10_1791964800
func DefaultName(t time.Time) string {
	return fmt.Sprintf("%s_%02d_%02d_%d", namePrefix, t.Day(), int(t.Month()), t.Unix())
}

// Creator creates key pairs
type Creator struct {
	api    aws.KeyPairAPI
	caller *aws.Caller
	logger *observability.StructuredLogger
	now    func() time.Time
}

// NewCreator creates a Creator. Calls go through caller.
func NewCreator(api aws.KeyPairAPI, caller *aws.Caller, logger logr.Logger) *Creator {
	return &Creator{
		api:    api,
		caller: caller,
		logger: observability.NewStructuredLogger(logger.WithName("keypair"), nil),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for default names
func (c *Creator) WithClock(now func() time.Time) *Creator {
	c.now = now
	return c
}

// Create creates the key pair name and writes its private key to dir/name.pem.
// An empty name or dir falls back to DefaultName and DefaultDirectory. The key
// file is never overwritten.
func (c *Creator) Create(ctx context.Context, name, dir string) (*KeyPair, error) {
	if name == "" {
		name = DefaultName(c.now())
	}
	if dir == "" {
		dir = DefaultDirectory
	}
	kp := &KeyPair{
		Name:      name,
		Directory: dir,
		Path:      filepath.Join(dir, name+keySuffix),
	}

	opCtx := observability.NewOperationContext("keypair", "create").
		WithResource(name).
		WithMetadata("path", kp.Path)
	c.logger.LogOperationStart(ctx, opCtx, "Creating key pair")

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, c.fail(ctx, opCtx, fmt.Errorf("failed to create key directory %s: %w", dir, err))
	}
	if _, err := os.Stat(kp.Path); err == nil {
		return nil, c.fail(ctx, opCtx, fmt.Errorf("%w: %s", ErrKeyFileExists, kp.Path))
	}

	var out *ec2.CreateKeyPairOutput
	err := c.caller.Do(ctx, aws.ServiceCompute, "CreateKeyPair", func(ctx context.Context) error {
		var err error
		out, err = c.api.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{KeyName: awssdk.String(name)})
		return err
	})
	if err != nil {
		return nil, c.fail(ctx, opCtx, fmt.Errorf("failed to create key pair %s: %w", name, err))
	}
	material := awssdk.ToString(out.KeyMaterial)
	if material == "" {
		return nil, c.fail(ctx, opCtx, fmt.Errorf("%w for %s", ErrNoKeyMaterial, name))
	}

	if err := writeKey(kp.Path, material); err != nil {
		return nil, c.fail(ctx, opCtx, err)
	}

	c.logger.LogOperationSuccess(ctx, opCtx, "Created key pair")
	return kp, nil
}

func (c *Creator) fail(ctx context.Context, opCtx *observability.OperationContext, err error) error {
	c.logger.LogOperationError(ctx, opCtx, err, "Key pair creation failed")
	return err
}

func writeKey(path, material string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyFileExists, path)
		}
		return fmt.Errorf("failed to open key file %s: %w", path, err)
	}
	if _, err := f.WriteString(material); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return f.Close()
}
