package handlers

import (
	"context"
	"fmt"
	"io"
)

// KeyPair handles the keypair command
func KeyPair(ctx context.Context, opts GlobalOptions, name, dir string, out io.Writer) error {
	env, err := newEnvironment(ctx, opts)
	if err != nil {
		return err
	}
	defer env.close()

	kp, err := env.builder.CreateKeyPair(ctx, name, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Key pair %s written to %s\n", kp.Name, kp.Path)
	return nil
}

// Images handles the images command
func Images(ctx context.Context, opts GlobalOptions, patterns []string, out io.Writer) error {
	env, err := newEnvironment(ctx, opts)
	if err != nil {
		return err
	}
	defer env.close()

	imageID, err := env.builder.FindImage(ctx, patterns...)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, imageID)
	return nil
}
