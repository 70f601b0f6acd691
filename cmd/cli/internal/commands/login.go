package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wolfeidau/authsession/internal/config"
	"github.com/wolfeidau/authsession/internal/session"
)

// LoginCmd exchanges credentials for a session token.
type LoginCmd struct {
	Email    string        `arg:"" help:"Account email address"`
	Password string        `help:"Account password (read from stdin when empty)" env:"AUTHSESSION_PASSWORD"`
	Wait     time.Duration `help:"How long to wait for the user profile after login" default:"10s"`
	Save     bool          `help:"Save the server URL to the profile file"`

	// stdin is used for the password prompt; nil means os.Stdin.
	stdin io.Reader `kong:"-"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := c.password(globals.out())
	if err != nil {
		return err
	}

	m, cleanup, err := openSession(globals)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Login(ctx, c.Email, password); err != nil {
		if errors.Is(err, session.ErrAuthenticationFailed) {
			return fmt.Errorf("login failed: invalid email or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	status := m.AuthStatus().Current()
	fmt.Fprintf(globals.out(), "Logged in as %s (%s)\n", status.UserID, status.UserRole)

	if c.Wait > 0 {
		if _, user, err := waitForProfile(ctx, m, c.Wait); err != nil {
			fmt.Fprintf(globals.out(), "Profile unavailable: %v\n", err)
		} else {
			fmt.Fprintf(globals.out(), "Welcome, %s <%s>\n", displayName(user.FullName(), user.ID), user.Email)
		}
	}

	if c.Save {
		if err := c.saveProfile(globals); err != nil {
			return err
		}
	}

	return nil
}

func (c *LoginCmd) password(out io.Writer) (string, error) {
	if c.Password != "" {
		return c.Password, nil
	}

	in := c.stdin
	if in == nil {
		in = os.Stdin
	}

	fmt.Fprint(out, "Password: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}

	return password, nil
}

func (c *LoginCmd) saveProfile(globals *Globals) error {
	path := globals.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	profile, err := globals.Profile()
	if err != nil {
		return err
	}

	if err := config.Save(path, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Fprintf(globals.out(), "Saved profile to %s\n", path)
	return nil
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
