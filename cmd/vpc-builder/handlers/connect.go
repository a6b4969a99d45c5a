package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/sshexec"
	"github.com/johnlam90/vpc-builder/pkg/util"
	"github.com/johnlam90/vpc-builder/pkg/vpc"
)

// ConnectCommand is what connect runs on the bouncer
const ConnectCommand = "ls -la /root"

// ConnectOptions are the connect command flags
type ConnectOptions struct {
	ImageID    string
	NATImageID string
	User       string
	KeyDir     string
	// Yes tears the VPC down without asking
	Yes bool
}

// RemoteRunner runs a shell command on a remote host
type RemoteRunner interface {
	Run(ctx context.Context, command string) (string, error)
}

// newRemote connects to the bouncer - can be replaced in tests.
var newRemote = func(cfg *sshexec.Config, logger logr.Logger) (RemoteRunner, error) {
	return sshexec.NewClient(cfg, logger)
}

// Connect handles the connect command.
//
// It creates a key pair, sets up a VPC with it, runs a command on the
// bouncer over SSH and then offers to tear the VPC down again.
func Connect(ctx context.Context, opts GlobalOptions, connectOpts ConnectOptions, in io.Reader, out io.Writer) error {
	env, err := newEnvironment(ctx, opts)
	if err != nil {
		return err
	}
	defer env.close()

	log := env.logger.WithName("connect")

	imageID := connectOpts.ImageID
	if imageID == "" {
		if imageID, err = env.builder.FindImage(ctx); err != nil {
			return err
		}
		log.Info("Using image", "imageID", imageID)
	}

	kp, err := env.builder.CreateKeyPair(ctx, "", connectOpts.KeyDir)
	if err != nil {
		return err
	}

	setup, err := env.builder.Setup(ctx, vpc.SetupOptions{
		ImageID:    imageID,
		NATImageID: connectOpts.NATImageID,
		KeyName:    kp.Name,
	})
	if setup != nil {
		printSetup(out, setup)
	}
	if err != nil {
		if setup != nil && setup.Vpc != nil {
			return fmt.Errorf("setup of %s failed, run teardown --vpc %s --terminate-instances to clean up: %w", setup.Vpc.ID, setup.Vpc.ID, err)
		}
		return fmt.Errorf("setup failed: %w", err)
	}

	sshErr := runOnBouncer(ctx, log, setup, kp.Path, connectOpts.User, out)
	if sshErr != nil {
		log.Error(sshErr, "Remote command failed", "vpcID", setup.Vpc.ID)
	}

	tear := connectOpts.Yes
	if !tear {
		if tear, err = util.Confirm(in, out, fmt.Sprintf("Teardown VPC %s ?", setup.Vpc.ID), true); err != nil {
			return errors.Join(sshErr, err)
		}
	}
	if !tear {
		fmt.Fprintf(out, "Keeping VPC %s\n", setup.Vpc.ID)
		return sshErr
	}
	return errors.Join(sshErr, runTeardown(ctx, env, setup.Vpc.ID, true, out))
}

func runOnBouncer(ctx context.Context, log logr.Logger, setup *vpc.Setup, keyPath, user string, out io.Writer) error {
	host := bouncerIP(setup)
	if host == "" {
		return errors.New("bouncer has no public IP")
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}

	remote, err := newRemote(&sshexec.Config{
		Host:        host,
		User:        user,
		PrivateKey:  key,
		Attempts:    sshexec.DefaultAttempts,
		DialTimeout: sshexec.DefaultDialTimeout,
	}, log)
	if err != nil {
		return err
	}

	output, err := remote.Run(ctx, ConnectCommand)
	if err != nil {
		return err
	}
	log.Info("Remote command output", "host", host, "command", ConnectCommand, "output", output)
	fmt.Fprint(out, output)
	return nil
}

func bouncerIP(setup *vpc.Setup) string {
	if setup.Bouncer == nil {
		return ""
	}
	for _, a := range setup.Addresses {
		if a.InstanceID == setup.Bouncer.ID() && a.PublicIP != "" {
			return a.PublicIP
		}
	}
	return setup.Bouncer.PublicIP
}
