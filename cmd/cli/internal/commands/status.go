package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/authsession/internal/tokencodec"
)

// StatusCmd prints the resumed session status.
type StatusCmd struct {
	JSON bool `help:"Print the status as JSON"`
}

type statusOutput struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	UserRole        string    `json:"userRole"`
	UserID          string    `json:"userId"`
	ExpiresAt       time.Time `json:"expiresAt,omitzero"`
}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	m, cleanup, err := openSession(globals)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := settle(ctx, m); err != nil {
		return err
	}

	status := m.AuthStatus().Current()
	out := statusOutput{
		IsAuthenticated: status.IsAuthenticated,
		UserRole:        status.UserRole.String(),
		UserID:          status.UserID,
	}

	if token := m.GetToken(); token != "" && status.IsAuthenticated {
		if claims, err := tokencodec.Decode(token); err == nil {
			if exp, err := tokencodec.ExpiryInstant(claims); err == nil {
				out.ExpiresAt = exp.UTC()
			}
		}
	}

	if c.JSON {
		enc := json.NewEncoder(globals.out())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if status.IsDefault() {
		fmt.Fprintln(globals.out(), "Not logged in")
		return nil
	}

	w := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Authenticated:\t%v\n", out.IsAuthenticated)
	fmt.Fprintf(w, "Role:\t%s\n", out.UserRole)
	if out.UserID != "" {
		fmt.Fprintf(w, "User ID:\t%s\n", out.UserID)
	}
	if !out.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:\t%s\n", out.ExpiresAt.Format(time.RFC3339))
	}
	return w.Flush()
}
