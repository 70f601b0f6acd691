package commands

import (
	"context"
	"fmt"
)

// LogoutCmd ends the session.
type LogoutCmd struct {
	Clear bool `help:"Delete the persisted token" default:"true" negatable:""`
}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	m, cleanup, err := openSession(globals)
	if err != nil {
		return err
	}
	defer cleanup()

	m.Logout(c.Clear)

	if err := settle(ctx, m); err != nil {
		return fmt.Errorf("failed to apply logout: %w", err)
	}

	if c.Clear {
		fmt.Fprintln(globals.out(), "Logged out, token deleted")
	} else {
		fmt.Fprintln(globals.out(), "Logged out, token kept")
	}
	return nil
}
