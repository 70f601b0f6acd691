package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/authsession/internal/config"
	"github.com/wolfeidau/authsession/internal/tokencodec"
)

func testToken(t *testing.T) string {
	t.Helper()

	claims := tokencodec.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "manager",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func apiServer(t *testing.T, token string) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body.Email != "a@b.com" || body.Password != "pw123456" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
	})

	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"_id":"u1","email":"a@b.com","name":{"first":"Ada","last":"Lovelace"},"role":"manager"}`))
	})

	// Connect unary procedures with JSON bodies.
	mux.HandleFunc("POST /pos.v1.EchoService/Echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthenticated","message":"invalid token"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})

	mux.HandleFunc("POST /pos.v1.AdminService/Purge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthenticated","message":"token revoked"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testGlobals(t *testing.T, serverURL string) (*Globals, *bytes.Buffer) {
	dir := t.TempDir()
	out := &bytes.Buffer{}

	return &Globals{
		ConfigPath: filepath.Join(dir, "config.yaml"),
		Overrides: config.Profile{
			ServerURL: serverURL,
			Store:     config.StoreConfig{Dir: filepath.Join(dir, "store")},
		},
		Out: out,
	}, out
}

func TestSessionLifecycle(t *testing.T) {
	token := testToken(t)
	srv := apiServer(t, token)
	globals, out := testGlobals(t, srv.URL)
	ctx := context.Background()

	login := &LoginCmd{Email: "a@b.com", Password: "pw123456", Wait: 5 * time.Second}
	require.NoError(t, login.Run(ctx, globals))
	assert.Contains(t, out.String(), "Logged in as u1 (manager)")
	assert.Contains(t, out.String(), "Welcome, Ada Lovelace <a@b.com>")

	out.Reset()
	require.NoError(t, (&StatusCmd{JSON: true}).Run(ctx, globals))

	var status statusOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.True(t, status.IsAuthenticated)
	assert.Equal(t, "manager", status.UserRole)
	assert.Equal(t, "u1", status.UserID)
	assert.False(t, status.ExpiresAt.IsZero())

	out.Reset()
	require.NoError(t, (&TokenCmd{}).Run(ctx, globals))
	assert.Equal(t, token, strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, (&TokenCmd{Fingerprint: true}).Run(ctx, globals))
	assert.Equal(t, tokencodec.Fingerprint(token), strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, (&WhoamiCmd{Timeout: 5 * time.Second}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Ada Lovelace <a@b.com>")
	assert.Contains(t, out.String(), "Role: manager")

	out.Reset()
	require.NoError(t, (&LogoutCmd{Clear: true}).Run(ctx, globals))
	assert.Contains(t, out.String(), "token deleted")

	out.Reset()
	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Equal(t, "Not logged in", strings.TrimSpace(out.String()))

	err := (&TokenCmd{}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	err = (&WhoamiCmd{Timeout: time.Second}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLoginCmd_InvalidCredentials(t *testing.T) {
	srv := apiServer(t, testToken(t))
	globals, _ := testGlobals(t, srv.URL)

	err := (&LoginCmd{Email: "a@b.com", Password: "wrong"}).Run(context.Background(), globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")

	err = (&TokenCmd{}).Run(context.Background(), globals)
	require.Error(t, err)
}

func TestLoginCmd_PasswordFromStdin(t *testing.T) {
	srv := apiServer(t, testToken(t))
	globals, out := testGlobals(t, srv.URL)

	login := &LoginCmd{Email: "a@b.com", stdin: strings.NewReader("pw123456\n")}
	require.NoError(t, login.Run(context.Background(), globals))
	assert.Contains(t, out.String(), "Password: ")
	assert.Contains(t, out.String(), "Logged in as u1")
}

func TestLoginCmd_EmptyPassword(t *testing.T) {
	globals, _ := testGlobals(t, "http://localhost:1")

	err := (&LoginCmd{Email: "a@b.com", stdin: strings.NewReader("\n")}).Run(context.Background(), globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestLoginCmd_SaveProfile(t *testing.T) {
	srv := apiServer(t, testToken(t))
	globals, out := testGlobals(t, srv.URL)

	require.NoError(t, (&LoginCmd{Email: "a@b.com", Password: "pw123456", Save: true}).Run(context.Background(), globals))
	assert.Contains(t, out.String(), "Saved profile to")

	profile, err := config.Load(globals.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, profile.ServerURL)
}

func TestGlobals_ProfileRejectsInvalidOverrides(t *testing.T) {
	globals, _ := testGlobals(t, "not a url")

	_, err := globals.Profile()
	require.ErrorIs(t, err, config.ErrInvalidProfile)
}

func TestCallCmd(t *testing.T) {
	srv := apiServer(t, testToken(t))
	globals, out := testGlobals(t, srv.URL)
	ctx := context.Background()

	err := (&CallCmd{Procedure: "/pos.v1.EchoService/Echo", Data: "{}"}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	require.NoError(t, (&LoginCmd{Email: "a@b.com", Password: "pw123456"}).Run(ctx, globals))

	out.Reset()
	require.NoError(t, (&CallCmd{Procedure: "/pos.v1.EchoService/Echo", Data: `{"text":"hi"}`}).Run(ctx, globals))
	assert.JSONEq(t, `{"text":"hi"}`, out.String())

	err = (&CallCmd{Procedure: "/pos.v1.EchoService/Echo", Data: "{oops"}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	err = (&CallCmd{Procedure: "/pos.v1.AdminService/Purge", Data: "{}"}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthenticated")

	out.Reset()
	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Equal(t, "Not logged in", strings.TrimSpace(out.String()))

	err = (&TokenCmd{}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}
