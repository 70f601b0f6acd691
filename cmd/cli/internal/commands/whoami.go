package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WhoamiCmd resumes the session and prints the current user profile.
type WhoamiCmd struct {
	Timeout time.Duration `help:"How long to wait for the profile" default:"10s"`
	JSON    bool          `help:"Print the profile as JSON"`
}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	m, cleanup, err := openSession(globals)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := settle(ctx, m); err != nil {
		return err
	}

	if !m.AuthStatus().Current().IsAuthenticated {
		return errors.New("not logged in")
	}

	status, user, err := waitForProfile(ctx, m, w.Timeout)
	if err != nil {
		return err
	}

	if w.JSON {
		enc := json.NewEncoder(globals.out())
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	}

	fmt.Fprintf(globals.out(), "%s <%s>\n", displayName(user.FullName(), user.ID), user.Email)
	fmt.Fprintf(globals.out(), "Role: %s\n", status.UserRole)
	return nil
}
