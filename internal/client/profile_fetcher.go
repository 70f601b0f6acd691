package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/wolfeidau/authsession/internal/models"
	"github.com/wolfeidau/authsession/internal/session"
	"github.com/wolfeidau/authsession/internal/tokencodec"
)

// defaultFetchTimeout bounds a shared fetch when the config sets no timeout.
const defaultFetchTimeout = 30 * time.Second

var _ session.ProfileFetcher = (*ProfileFetcher)(nil)

// ProfileFetcher loads the current user from the profile endpoint. Requests
// carry the token from the token source and go through a response cache.
// Concurrent fetches with the same token share one request.
type ProfileFetcher struct {
	url     string
	source  oauth2.TokenSource
	cache   http.RoundTripper
	timeout time.Duration
	group   singleflight.Group
}

// NewProfileFetcher creates a fetcher for cfg.ServerURL authenticated by ts.
func NewProfileFetcher(cfg Config, ts oauth2.TokenSource) (*ProfileFetcher, error) {
	url, err := cfg.endpoint(profilePath)
	if err != nil {
		return nil, err
	}

	if ts == nil {
		return nil, fmt.Errorf("token source is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &ProfileFetcher{
		url:     url,
		source:  ts,
		cache:   NewCachingTransport(cfg.CacheDir, http.DefaultTransport),
		timeout: timeout,
	}, nil
}

func (f *ProfileFetcher) FetchCurrentUser(ctx context.Context) (models.User, error) {
	tok, err := f.source.Token()
	if err != nil {
		return models.User{}, session.NewTransportError("fetch profile", err)
	}

	// The shared request outlives any one caller; the client timeout bounds it.
	ch := f.group.DoChan(tokencodec.Fingerprint(tok.AccessToken), func() (any, error) {
		return f.fetch(context.WithoutCancel(ctx), tok)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.User{}, res.Err
		}
		if res.Shared {
			log.Debug().Msg("shared in-flight profile fetch")
		}
		return res.Val.(models.User), nil
	case <-ctx.Done():
		return models.User{}, session.NewTransportError("fetch profile", ctx.Err())
	}
}

func (f *ProfileFetcher) fetch(ctx context.Context, tok *oauth2.Token) (models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := &http.Client{
		Timeout: f.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   f.cache,
		},
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return models.User{}, session.NewTransportError("fetch profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.User{}, session.NewTransportError("fetch profile",
			&statusError{code: resp.StatusCode, message: readErrorMessage(resp)})
	}

	// Read to EOF so the cache stores the response.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.User{}, session.NewTransportError("fetch profile", fmt.Errorf("failed to read response: %w", err))
	}

	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		return models.User{}, session.NewTransportError("fetch profile", fmt.Errorf("failed to decode user: %w", err))
	}

	log.Debug().
		Str("user_id", user.ID).
		Bool("cached", resp.Header.Get(httpcache.XFromCache) == "1").
		Msg("fetched current user")

	return user, nil
}
