package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfeidau/authsession/internal/client"
)

// CallCmd sends an authenticated Connect RPC request with a JSON body.
type CallCmd struct {
	Procedure string `arg:"" help:"Procedure path, e.g. /pos.v1.OrderService/ListOrders"`
	Data      string `help:"JSON request body" short:"d" default:"{}"`
}

func (c *CallCmd) Run(ctx context.Context, globals *Globals) error {
	profile, err := globals.Profile()
	if err != nil {
		return err
	}

	m, cleanup, err := openProfileSession(profile)
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

	caller, err := client.NewCaller(clientConfig(profile), m)
	if err != nil {
		return err
	}

	resp, err := caller.Call(ctx, c.Procedure, json.RawMessage(c.Data))
	if err != nil {
		return fmt.Errorf("call %s failed: %w", c.Procedure, err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(resp)
	}

	fmt.Fprintln(globals.out(), pretty.String())
	return nil
}
