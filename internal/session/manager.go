// Package session is the client side authentication core.
//
// A Manager owns the persisted access token and publishes who is logged in
// and with what role. State transitions run on a private event loop so that
// every observer sees them in the same order, and so that deferred
// transitions (startup reaction, logout reset) never happen inline in the
// caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/authsession/internal/loop"
	"github.com/wolfeidau/authsession/internal/models"
	"github.com/wolfeidau/authsession/internal/state"
	"github.com/wolfeidau/authsession/internal/telemetry"
	"github.com/wolfeidau/authsession/internal/tokencodec"
	"github.com/wolfeidau/authsession/internal/tokenstore"
)

const (
	// DefaultTokenKey is the store key holding the raw token.
	DefaultTokenKey = "jwt"

	defaultFetchMaxTries = 3
	defaultFetchTimeout  = 30 * time.Second
)

// StatusFunc derives the published status from decoded claims.
type StatusFunc func(claims *tokencodec.Claims) models.AuthStatus

// DefaultStatusFunc treats a token as authenticated when it names a user and
// carries a known role other than RoleNone.
func DefaultStatusFunc(claims *tokencodec.Claims) models.AuthStatus {
	role := models.ParseRole(claims.Role)
	userID := claims.UserID()

	if userID == "" || role == models.RoleNone {
		return models.DefaultAuthStatus
	}

	return models.AuthStatus{
		IsAuthenticated: true,
		UserRole:        role,
		UserID:          userID,
	}
}

// Snapshot pairs the status with the profile that belongs to it. Both go
// into one value so that a reader never sees one user's status next to
// another user's profile.
type Snapshot struct {
	Status models.AuthStatus
	User   models.User
}

// Config holds the manager's collaborators and tunables.
type Config struct {
	Store    tokenstore.Store
	Provider CredentialProvider
	Fetcher  ProfileFetcher

	// TokenKey defaults to DefaultTokenKey.
	TokenKey string

	// StatusFunc defaults to DefaultStatusFunc.
	StatusFunc StatusFunc

	// Now defaults to time.Now.
	Now func() time.Time

	// MeterProvider defaults to the global meter provider.
	MeterProvider metric.MeterProvider

	// NewFetchBackOff builds the retry policy of one profile fetch.
	// Defaults to a short exponential backoff.
	NewFetchBackOff func() backoff.BackOff

	// FetchMaxTries bounds profile fetch attempts, including the first.
	FetchMaxTries uint

	// FetchTimeout bounds a single profile fetch attempt.
	FetchTimeout time.Duration
}

// Manager is the session manager. Create one per application with New and
// release it with Close.
type Manager struct {
	store      tokenstore.Store
	tokenKey   string
	provider   CredentialProvider
	fetcher    ProfileFetcher
	statusFunc StatusFunc
	now        func() time.Time
	metrics    *telemetry.Metrics

	newFetchBackOff func() backoff.BackOff
	fetchMaxTries   uint
	fetchTimeout    time.Duration

	loop          *loop.Loop
	authStatus    *state.Cell[models.AuthStatus]
	currentUser   *state.Cell[models.User]
	profileErrors *state.Cell[error]
	snapshot      *state.Cell[Snapshot]

	// loginMu serialises Login calls on this manager.
	loginMu sync.Mutex

	// Owned by the loop goroutine.
	generation     uint64
	profileOwner   string
	cancelReaction func()
	closed         bool

	ctx       context.Context
	cancel    context.CancelFunc
	fetches   sync.WaitGroup
	closeOnce sync.Once
}

// New creates a manager and resumes any persisted session.
//
// A missing, malformed or expired token results in a hard logout. A valid
// token seeds the status immediately; the profile reaction is activated on
// the next loop turn so that collaborators finish their own construction first.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}

	if cfg.Provider == nil || cfg.Fetcher == nil {
		return nil, fmt.Errorf("credential provider and profile fetcher are required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		store:           cfg.Store,
		tokenKey:        cfg.TokenKey,
		provider:        cfg.Provider,
		fetcher:         cfg.Fetcher,
		statusFunc:      cfg.StatusFunc,
		now:             cfg.Now,
		metrics:         telemetry.NewMetrics(cfg.MeterProvider),
		newFetchBackOff: cfg.NewFetchBackOff,
		fetchMaxTries:   cfg.FetchMaxTries,
		fetchTimeout:    cfg.FetchTimeout,
		loop:            loop.New(),
		authStatus:      state.NewCell(models.DefaultAuthStatus),
		currentUser:     state.NewCell(models.User{}),
		profileErrors:   state.NewCell[error](nil),
		snapshot:        state.NewCell(Snapshot{Status: models.DefaultAuthStatus}),
		ctx:             ctx,
		cancel:          cancel,
	}

	if m.tokenKey == "" {
		m.tokenKey = DefaultTokenKey
	}
	if m.statusFunc == nil {
		m.statusFunc = DefaultStatusFunc
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newFetchBackOff == nil {
		m.newFetchBackOff = defaultFetchBackOff
	}
	if m.fetchMaxTries == 0 {
		m.fetchMaxTries = defaultFetchMaxTries
	}
	if m.fetchTimeout <= 0 {
		m.fetchTimeout = defaultFetchTimeout
	}

	m.loop.Start()
	m.resume()
	m.loop.Post(m.activateProfileReaction)

	return m, nil
}

func defaultFetchBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// AuthStatus is the live authentication status.
func (m *Manager) AuthStatus() *state.Cell[models.AuthStatus] {
	return m.authStatus
}

// CurrentUser is the live profile of the logged in user, empty when logged out.
func (m *Manager) CurrentUser() *state.Cell[models.User] {
	return m.currentUser
}

// ProfileErrors carries the outcome of the latest profile fetch: the error
// when it failed, nil once a fetch succeeds.
func (m *Manager) ProfileErrors() *state.Cell[error] {
	return m.profileErrors
}

// Snapshot is the status and profile as one consistent value.
func (m *Manager) Snapshot() *state.Cell[Snapshot] {
	return m.snapshot
}

// GetToken returns the persisted token, or "" when there is none.
func (m *Manager) GetToken() string {
	token, ok, err := m.store.Get(context.Background(), m.tokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read token")
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// Login discards any prior session, exchanges the credentials for a token,
// persists it and publishes the derived status. It returns once the status is
// visible through AuthStatus().Current(). The profile is fetched afterwards
// by the profile reaction; its failures go to ProfileErrors, not to Login.
//
// On failure the manager is reset to a clean logged out state before the
// original error is returned. Logins on one manager are serialised. Login
// must not be called from an observer.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	started := time.Now()
	logger := log.With().Str("attempt_id", uuid.NewString()).Logger()

	logger.Debug().Str("email", email).Msg("login started")

	m.clearToken()

	status, err := m.authenticate(ctx, email, password)

	m.metrics.LoginDuration.Record(context.Background(), float64(time.Since(started).Milliseconds()))

	if err != nil {
		kind := failureKind(err)

		m.metrics.LoginFailuresTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", kind)))

		logger.Warn().Err(err).Str("kind", kind).Msg("login failed")

		m.clearToken()
		if resetErr := m.loop.Call(context.WithoutCancel(ctx), m.reset); resetErr != nil {
			logger.Debug().Err(resetErr).Msg("reset after failed login not applied")
		}

		return err
	}

	m.metrics.LoginsTotal.Add(context.Background(), 1)

	logger.Info().
		Str("user_id", status.UserID).
		Str("role", status.UserRole.String()).
		Msg("login succeeded")

	return nil
}

func (m *Manager) authenticate(ctx context.Context, email, password string) (models.AuthStatus, error) {
	resp, err := m.provider.Authenticate(ctx, email, password)
	if err != nil {
		return models.AuthStatus{}, err
	}

	claims, err := tokencodec.Decode(resp.AccessToken)
	if err != nil {
		return models.AuthStatus{}, err
	}

	if tokencodec.IsExpired(claims, m.now()) {
		return models.AuthStatus{}, fmt.Errorf("%w: token is expired", ErrNotAuthenticated)
	}

	status := m.statusFunc(claims)
	if !status.IsAuthenticated {
		return models.AuthStatus{}, ErrNotAuthenticated
	}

	if err := m.store.Set(ctx, m.tokenKey, resp.AccessToken); err != nil {
		return models.AuthStatus{}, fmt.Errorf("failed to persist token: %w", err)
	}

	log.Debug().
		Str("fingerprint", tokencodec.Fingerprint(resp.AccessToken)).
		Msg("token persisted")

	if err := m.loop.Call(ctx, func() { m.publishStatus(status) }); err != nil {
		return models.AuthStatus{}, err
	}

	return status, nil
}

// Logout resets the published status and profile to their defaults on the
// next loop turn, never inline. With clearToken the persisted token is also
// deleted, immediately. Calling Logout while logged out re-publishes defaults.
func (m *Manager) Logout(clearToken bool) {
	if clearToken {
		m.clearToken()
	}

	m.metrics.LogoutsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("clear_token", clearToken)))

	if !m.loop.Post(m.reset) {
		log.Debug().Msg("logout after close ignored")
	}
}

// WaitForUser blocks until the manager is authenticated and the profile of
// that session has been published.
func (m *Manager) WaitForUser(ctx context.Context) (models.AuthStatus, models.User, error) {
	snap, err := m.snapshot.Wait(ctx, func(s Snapshot) bool {
		return s.Status.IsAuthenticated && !s.User.IsEmpty()
	})
	if err != nil {
		return models.AuthStatus{}, models.User{}, err
	}
	return snap.Status, snap.User, nil
}

// Flush waits until every transition requested before the call is applied.
func (m *Manager) Flush(ctx context.Context) error {
	return m.loop.Flush(ctx)
}

// Close cancels in-flight profile fetches and stops the event loop.
// Pending transitions are applied before Close returns.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()

		err := m.loop.Call(context.Background(), func() {
			m.closed = true
			if m.cancelReaction != nil {
				m.cancelReaction()
			}
		})
		if err != nil && !errors.Is(err, loop.ErrClosed) {
			log.Warn().Err(err).Msg("failed to stop profile reaction")
		}

		m.fetches.Wait()
		m.loop.Close()
	})
}

// resume decides, during construction, whether the persisted token can be
// resumed. Decode failures are handled here and never surface to callers.
func (m *Manager) resume() {
	token := m.GetToken()
	if token == "" {
		m.recordResume("absent")
		m.Logout(true)
		return
	}

	claims, err := tokencodec.Decode(token)
	if err != nil {
		log.Warn().Err(err).Msg("persisted token is malformed, logging out")
		m.recordResume("malformed")
		m.Logout(true)
		return
	}

	if tokencodec.IsExpired(claims, m.now()) {
		log.Info().Str("fingerprint", tokencodec.Fingerprint(token)).Msg("persisted token expired, logging out")
		m.recordResume("expired")
		m.Logout(true)
		return
	}

	status := m.statusFunc(claims)

	// No observers exist yet and the loop has not run a task, so seeding the
	// cell here cannot interleave with a loop publish.
	m.authStatus.Publish(status)
	m.snapshot.Publish(Snapshot{Status: status})
	m.metrics.StatePublishesTotal.Add(context.Background(), 1)
	m.recordResume("resumed")

	log.Debug().
		Str("user_id", status.UserID).
		Str("role", status.UserRole.String()).
		Msg("session resumed from persisted token")
}

func (m *Manager) recordResume(outcome string) {
	m.metrics.ResumesTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Manager) clearToken() {
	if err := m.store.Remove(context.Background(), m.tokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to remove token")
	}
}

// The methods below run on the loop goroutine only.

// publishStatus clears a profile that belongs to another session before the
// new status becomes visible.
func (m *Manager) publishStatus(status models.AuthStatus) {
	if !m.currentUser.Current().IsEmpty() && (!status.IsAuthenticated || status.UserID != m.profileOwner) {
		m.publishUser(models.User{}, "")
	}

	m.generation++
	m.authStatus.Publish(status)
	m.metrics.StatePublishesTotal.Add(context.Background(), 1)
	m.publishSnapshot()
}

func (m *Manager) publishUser(user models.User, owner string) {
	m.currentUser.Publish(user)
	m.profileOwner = owner
}

func (m *Manager) publishSnapshot() {
	m.snapshot.Publish(Snapshot{
		Status: m.authStatus.Current(),
		User:   m.currentUser.Current(),
	})
}

func (m *Manager) reset() {
	m.publishUser(models.User{}, "")
	m.publishStatus(models.DefaultAuthStatus)
}

// activateProfileReaction subscribes the profile fetch to the status. The
// subscription replays the current status, which triggers the resume fetch.
func (m *Manager) activateProfileReaction() {
	if m.closed {
		return
	}

	m.cancelReaction = m.authStatus.Subscribe(func(status models.AuthStatus) {
		if status.IsAuthenticated {
			m.startProfileFetch(status)
		}
	})
}

func (m *Manager) startProfileFetch(status models.AuthStatus) {
	if m.closed {
		return
	}

	gen := m.generation
	m.metrics.ProfileFetchesTotal.Add(context.Background(), 1)

	m.fetches.Add(1)
	go func() {
		defer m.fetches.Done()

		user, err := m.fetchProfile(m.ctx)

		m.loop.Post(func() { m.applyProfile(gen, status, user, err) })
	}()
}

func (m *Manager) fetchProfile(ctx context.Context) (models.User, error) {
	operation := func() (models.User, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
		defer cancel()

		user, err := m.fetcher.FetchCurrentUser(attemptCtx)
		if err != nil {
			if IsTransportError(err) {
				log.Debug().Err(err).Msg("profile fetch failed, will retry")
				return models.User{}, err
			}
			return models.User{}, backoff.Permanent(err)
		}
		return user, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(m.newFetchBackOff()),
		backoff.WithMaxTries(m.fetchMaxTries),
	)
}

// applyProfile publishes a fetch result unless the status changed since the
// fetch started, in which case the result belongs to a session that is gone.
func (m *Manager) applyProfile(gen uint64, status models.AuthStatus, user models.User, err error) {
	if m.closed || m.ctx.Err() != nil {
		return
	}

	if gen != m.generation {
		m.metrics.ProfileFetchStaleDropped.Add(context.Background(), 1)
		log.Debug().Str("user_id", status.UserID).Msg("dropping stale profile result")
		return
	}

	if err != nil {
		m.metrics.ProfileFetchErrorsTotal.Add(context.Background(), 1)
		log.Warn().Err(err).Str("user_id", status.UserID).Msg("failed to fetch current user")
		m.profileErrors.Publish(err)
		return
	}

	m.publishUser(user, status.UserID)
	m.publishSnapshot()
	m.profileErrors.Publish(nil)

	log.Debug().Str("user_id", user.ID).Msg("current user updated")
}
