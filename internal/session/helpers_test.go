package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/wolfeidau/authsession/internal/models"
	"github.com/wolfeidau/authsession/internal/tokencodec"
	"github.com/wolfeidau/authsession/internal/tokenstore"
)

var testNow = time.Unix(1_800_000_000, 0)

// signToken creates an HS256 token; the signature is irrelevant to the client.
func signToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()

	claims := tokencodec.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
		Role: role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

// fakeProvider returns a queued response or error per call.
type fakeProvider struct {
	mu       sync.Mutex
	token    string
	err      error
	calls    int
	inFlight int
	maxSeen  int
	block    chan struct{}
}

func (p *fakeProvider) Authenticate(ctx context.Context, email, password string) (AuthResponse, error) {
	p.mu.Lock()
	p.calls++
	p.inFlight++
	if p.inFlight > p.maxSeen {
		p.maxSeen = p.inFlight
	}
	block := p.block
	token, err := p.token, p.err
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return AuthResponse{}, ctx.Err()
		}
	}

	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{AccessToken: token}, nil
}

func (p *fakeProvider) set(token string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.err = err
}

// fakeFetcher returns user or err and counts calls.
type fakeFetcher struct {
	mu    sync.Mutex
	user  models.User
	err   error
	calls int
	block chan struct{}
}

func (f *fakeFetcher) FetchCurrentUser(ctx context.Context) (models.User, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	user, err := f.user, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.User{}, ctx.Err()
		}
	}

	return user, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	store    *tokenstore.MemoryStore
	provider *fakeProvider
	fetcher  *fakeFetcher
	reader   *sdkmetric.ManualReader
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:    tokenstore.NewMemoryStore(),
		provider: &fakeProvider{},
		fetcher:  &fakeFetcher{user: models.User{ID: "u1", Email: "a@b.com"}},
		reader:   sdkmetric.NewManualReader(),
	}
}

func (e *testEnv) config() Config {
	return Config{
		Store:           e.store,
		Provider:        e.provider,
		Fetcher:         e.fetcher,
		Now:             func() time.Time { return testNow },
		MeterProvider:   sdkmetric.NewMeterProvider(sdkmetric.WithReader(e.reader)),
		NewFetchBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		FetchMaxTries:   2,
	}
}

func (e *testEnv) newManager(t *testing.T) *Manager {
	t.Helper()

	m, err := New(e.config())
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return m
}

func (e *testEnv) persist(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, e.store.Set(context.Background(), DefaultTokenKey, token))
}

func (e *testEnv) persisted(t *testing.T) (string, bool) {
	t.Helper()
	token, ok, err := e.store.Get(context.Background(), DefaultTokenKey)
	require.NoError(t, err)
	return token, ok
}

// counterValue sums every data point of the named int64 counter.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}

	return total
}

func flush(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
