package consultant

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
)

type storefront struct {
	t     *testing.T
	login func(w http.ResponseWriter, r *http.Request)

	mu        sync.Mutex
	gotAuth   string
	gotCookie string
}

func (s *storefront) seen() (auth, cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotAuth, s.gotCookie
}

func (s *storefront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		assert.Equal(s.t, http.MethodPost, r.Method)
		s.login(w, r)
	case bff.DefaultSearchPath:
		s.mu.Lock()
		s.gotAuth = r.Header.Get("Authorization")
		s.gotCookie = r.Header.Get("Cookie")
		s.mu.Unlock()
		if r.Header.Get("Authorization") == "" && r.Header.Get("Cookie") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"products":[{"productId":"NATBRA-1","name":"Kaiak","url":"/p/kaiak/NATBRA-1",` +
			`"price":{"sales":{"value":99.9},"consultant":{"value":69.93}}}]}`))
	case "/home":
		_, _ = w.Write([]byte(`<a href="/c/perfumaria">x</a>`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, s *storefront, mod func(*Config)) *Client {
	t.Helper()
	s.t = t
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	hc := fetch.New(fetch.Config{})
	catalog := bff.New(bff.Config{
		BaseURL:         srv.URL,
		RootSlugs:       []string{"root"},
		MinRootProducts: 1,
		Profiles:        []bff.Profile{{Name: "default"}},
	}, hc)
	cfg := Config{LoginURL: srv.URL + "/login"}
	if mod != nil {
		mod(&cfg)
	}
	return New(cfg, hc, catalog)
}

var creds = Credentials{Login: " 123456 ", Password: "secret"}

func TestLogin_TokenFromNestedJSON(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "123456", r.PostForm.Get("login"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		_, _ = w.Write([]byte(`{"data":{"session":{"accessToken":"tok-1"}}}`))
	}}
	c := newTestClient(t, s, nil)

	sess, err := c.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.BearerToken)
	assert.Empty(t, sess.Cookie)
}

func TestLogin_JSONEncodingAndCustomFields(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":"123456","pass":"secret"}`, string(data))
		_, _ = w.Write([]byte(`{"jwt":"j"}`))
	}}
	c := newTestClient(t, s, func(cfg *Config) {
		cfg.Encoding = EncodingJSON
		cfg.LoginField = "user"
		cfg.PasswordField = "pass"
	})

	sess, err := c.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "j", sess.BearerToken)
}

func TestLogin_CookiesFromRedirect(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "region", Value: "sp"})
		w.Header().Set("Location", "/home")
		w.WriteHeader(http.StatusFound)
	}}
	c := newTestClient(t, s, nil)

	sess, err := c.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "sid=abc; region=sp", sess.Cookie)
	assert.Empty(t, sess.BearerToken)
}

func TestLogin_Rejected(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}}
	c := newTestClient(t, s, nil)

	_, err := c.Login(context.Background(), creds)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}

func TestLogin_NoCredentialInResponse(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}}
	c := newTestClient(t, s, nil)

	_, err := c.Login(context.Background(), creds)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.Status)
}

func TestLogin_MissingCredentials(t *testing.T) {
	c := newTestClient(t, &storefront{}, nil)

	for _, cr := range []Credentials{{}, {Login: "  ", Password: "x"}, {Login: "a"}} {
		_, err := c.Login(context.Background(), cr)
		require.ErrorIs(t, err, ErrMissingCredentials)
	}
}

func TestLogin_Canceled(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}}
	c := newTestClient(t, s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Login(ctx, creds)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchAuthenticatedCatalog(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc"})
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	}}
	c := newTestClient(t, s, nil)

	res, err := c.FetchAuthenticatedCatalog(context.Background(), creds, nil)
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, "NATBRA-1", p.ID)
	assert.Equal(t, "69.93", p.PurchasePrice.Decimal.String())
	auth, cookie := s.seen()
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "sid=abc", cookie)
}

func TestFetchAuthenticatedCatalog_AuthErrorSurfaces(t *testing.T) {
	s := &storefront{login: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}}
	c := newTestClient(t, s, nil)

	res, err := c.FetchAuthenticatedCatalog(context.Background(), creds, []string{"perfumaria"})
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusForbidden, authErr.Status)
	assert.Empty(t, res.Products)
	auth, _ := s.seen()
	assert.Empty(t, auth)
}

func TestCredentials(t *testing.T) {
	t.Setenv(EnvLogin, "env-login")
	t.Setenv(EnvPassword, "env-pass")

	env := CredentialsFromEnv()
	assert.Equal(t, Credentials{Login: "env-login", Password: "env-pass"}, env)
	assert.Equal(t, Credentials{Login: "mine", Password: "env-pass"}, Credentials{Login: "mine"}.Or(env))
	assert.True(t, env.Valid())
	assert.False(t, Credentials{Login: "x"}.Valid())
}

func TestCookieHeader(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "a=1; Path=/; HttpOnly")
	h.Add("Set-Cookie", "garbage")
	h.Add("Set-Cookie", "b="+url.QueryEscape("x y")+"; Secure")
	assert.Equal(t, "a=1; b=x+y", cookieHeader(h))
}
