package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/authsession/internal/client"
	"github.com/wolfeidau/authsession/internal/config"
	"github.com/wolfeidau/authsession/internal/models"
	"github.com/wolfeidau/authsession/internal/session"
)

type Globals struct {
	Debug   bool
	Version string

	// ConfigPath is the client profile; empty uses ~/.authsession/config.yaml.
	ConfigPath string

	// Overrides holds flag values that win over the profile file.
	Overrides config.Profile

	// Out receives command output; nil means stdout.
	Out io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// Profile loads the profile file and applies flag overrides.
func (g *Globals) Profile() (config.Profile, error) {
	profile, err := config.Load(g.ConfigPath)
	if err != nil {
		return config.Profile{}, err
	}

	profile = profile.Merge(g.Overrides)
	if err := profile.Validate(); err != nil {
		return config.Profile{}, err
	}

	return profile, nil
}

func clientConfig(profile config.Profile) client.Config {
	return client.Config{
		ServerURL: profile.ServerURL,
		Timeout:   profile.Timeout,
		CacheDir:  profile.CacheDir,
	}
}

// openSession wires a session manager to the HTTP collaborators and the
// configured token store. The returned function releases all of it.
func openSession(g *Globals) (*session.Manager, func(), error) {
	profile, err := g.Profile()
	if err != nil {
		return nil, nil, err
	}

	return openProfileSession(profile)
}

func openProfileSession(profile config.Profile) (*session.Manager, func(), error) {
	store, closeStore, err := profile.OpenStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open token store: %w", err)
	}

	clientCfg := clientConfig(profile)

	provider, err := client.NewCredentialProvider(clientCfg)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}

	fetcher, err := client.NewProfileFetcher(clientCfg, session.NewTokenSource(store, session.DefaultTokenKey))
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}

	m, err := session.New(session.Config{
		Store:    store,
		Provider: provider,
		Fetcher:  fetcher,
	})
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	log.Debug().
		Str("server", profile.ServerURL).
		Str("backend", profile.Store.Backend).
		Str("scope", profile.Scope()).
		Msg("session opened")

	cleanup := func() {
		m.Close()
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("failed to close token store")
		}
	}

	return m, cleanup, nil
}

// settle waits for deferred transitions, such as the logout of an expired
// session, so that commands report the settled state.
func settle(ctx context.Context, m *session.Manager) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.Flush(ctx)
}

// waitForProfile waits for the profile of the current session. It gives up
// early when the profile fetch reports an error.
func waitForProfile(ctx context.Context, m *session.Manager, timeout time.Duration) (models.AuthStatus, models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := m.ProfileErrors().Subscribe(func(err error) {
		if err != nil {
			cancel()
		}
	})
	defer stop()

	status, user, err := m.WaitForUser(ctx)
	if err != nil {
		if profileErr := m.ProfileErrors().Current(); profileErr != nil {
			return models.AuthStatus{}, models.User{}, fmt.Errorf("failed to fetch profile: %w", profileErr)
		}
		return models.AuthStatus{}, models.User{}, fmt.Errorf("failed to fetch profile: %w", err)
	}

	return status, user, nil
}
