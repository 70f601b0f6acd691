package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/authsession/internal/tokencodec"
)

// TokenCmd prints the persisted access token for use in scripts.
type TokenCmd struct {
	Fingerprint bool `help:"Print a fingerprint instead of the raw token"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	m, cleanup, err := openSession(globals)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := settle(ctx, m); err != nil {
		return err
	}

	token := m.GetToken()
	if token == "" {
		return errors.New("not logged in")
	}

	if t.Fingerprint {
		fmt.Fprintln(globals.out(), tokencodec.Fingerprint(token))
		return nil
	}

	fmt.Fprintln(globals.out(), token)
	return nil
}
