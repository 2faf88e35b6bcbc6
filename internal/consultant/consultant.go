// Package consultant logs a reseller consultant into the Natura storefront
// and fetches the catalog with the resulting session attached.
package consultant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

// Environment variables holding default credentials.
const (
	EnvLogin    = "NATURA_CONSULTANT_LOGIN"
	EnvPassword = "NATURA_CONSULTANT_PASSWORD"
)

// Encoding of the login request body.
type Encoding string

// Supported encodings.
const (
	EncodingForm Encoding = "form"
	EncodingJSON Encoding = "json"
)

// Defaults.
const (
	DefaultLoginURL = "https://www.natura.com.br/api/auth/consultant/login"
	DefaultTimeout  = 15 * time.Second
)

// DefaultTokenFields are searched in the login response body, in order.
var DefaultTokenFields = []string{
	"access_token", "accessToken", "token", "id_token", "idToken", "jwt", "bearerToken",
}

// ErrMissingCredentials is returned when login or password is empty.
var ErrMissingCredentials = errors.New("missing consultant credentials")

// AuthError reports a rejected login. Status is zero when the upstream
// answered with a success status but carried no usable credential.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "consultant login: " + e.Reason
	}
	return fmt.Sprintf("consultant login: http %d: %s", e.Status, e.Reason)
}

// Config configures the login flow.
type Config struct {
	LoginURL      string
	LoginField    string
	PasswordField string
	Encoding      Encoding
	TokenFields   []string
	Timeout       time.Duration
}

func (c *Config) setDefaults() {
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.LoginField == "" {
		c.LoginField = "login"
	}
	if c.PasswordField == "" {
		c.PasswordField = "password"
	}
	if c.Encoding != EncodingJSON {
		c.Encoding = EncodingForm
	}
	if len(c.TokenFields) == 0 {
		c.TokenFields = DefaultTokenFields
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	c.Timeout = fetch.ClampTimeout(c.Timeout)
}

// Credentials identify a consultant.
type Credentials struct {
	Login    string
	Password string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Login) != "" && c.Password != ""
}

// Or fills empty fields from fallback.
func (c Credentials) Or(fallback Credentials) Credentials {
	if strings.TrimSpace(c.Login) == "" {
		c.Login = fallback.Login
	}
	if c.Password == "" {
		c.Password = fallback.Password
	}
	return c
}

// CredentialsFromEnv reads EnvLogin and EnvPassword.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Login:    os.Getenv(EnvLogin),
		Password: os.Getenv(EnvPassword),
	}
}

// Session is the credential attached to backend requests.
type Session = bff.Session

// Doer sends raw requests.
type Doer interface {
	Do(ctx context.Context, req fetch.Request, opts ...fetch.Option) (*fetch.Response, error)
}

var _ Doer = (*fetch.Client)(nil)

// Client logs consultants in and fetches their catalog.
type Client struct {
	cfg     Config
	http    Doer
	catalog *bff.Client
}

// New creates a Client.
func New(cfg Config, http Doer, catalog *bff.Client) *Client {
	cfg.setDefaults()
	return &Client{cfg: cfg, http: http, catalog: catalog}
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) body(creds Credentials) ([]byte, string) {
	login := strings.TrimSpace(creds.Login)
	if c.cfg.Encoding == EncodingJSON {
		var e jx.Encoder
		e.Obj(func(e *jx.Encoder) {
			e.Field(c.cfg.LoginField, func(e *jx.Encoder) { e.Str(login) })
			e.Field(c.cfg.PasswordField, func(e *jx.Encoder) { e.Str(creds.Password) })
		})
		return e.Bytes(), "application/json"
	}
	form := url.Values{}
	form.Set(c.cfg.LoginField, login)
	form.Set(c.cfg.PasswordField, creds.Password)
	return []byte(form.Encode()), "application/x-www-form-urlencoded"
}

// Login posts creds to the login endpoint and extracts a bearer token from
// the response body and a cookie header from Set-Cookie.
func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	if !creds.Valid() {
		return Session{}, ErrMissingCredentials
	}
	body, contentType := c.body(creds)
	resp, err := c.http.Do(ctx, fetch.Request{
		Method:      http.MethodPost,
		URL:         c.cfg.LoginURL,
		Header:      http.Header{"Accept": []string{"application/json"}},
		Body:        body,
		ContentType: contentType,
		NoRedirect:  true,
	}, fetch.WithTimeout(c.cfg.Timeout))
	if err != nil {
		if cerr := fetch.Canceled(ctx); cerr != nil {
			return Session{}, cerr
		}
		return Session{}, &AuthError{Reason: fetch.Code(err)}
	}
	if !loginAccepted(resp.Status) {
		return Session{}, &AuthError{Status: resp.Status, Reason: "login rejected"}
	}

	var s Session
	if v, err := jsonvalue.Parse(resp.Body); err == nil {
		s.BearerToken, _ = jsonvalue.FindString(v, c.cfg.TokenFields...)
	}
	s.Cookie = cookieHeader(resp.Header)
	if !s.Valid() {
		return Session{}, &AuthError{Reason: "no session token or cookie in response"}
	}

	zctx.From(ctx).Debug("Consultant logged in",
		zap.Bool("bearer", s.BearerToken != ""),
		zap.Bool("cookie", s.Cookie != ""),
	)
	return s, nil
}

func loginAccepted(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusFound || status == http.StatusSeeOther
}

// cookieHeader joins the name=value pair of every Set-Cookie header.
func cookieHeader(h http.Header) string {
	var pairs []string
	for _, line := range h.Values("Set-Cookie") {
		ck, err := http.ParseSetCookie(line)
		if err != nil || ck.Name == "" {
			continue
		}
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	return strings.Join(pairs, "; ")
}

// FetchAuthenticatedCatalog logs in and fetches the catalog with the session
// attached. Login failures are returned as is; anonymous data is never
// substituted.
func (c *Client) FetchAuthenticatedCatalog(ctx context.Context, creds Credentials, categories []string) (catalog.UpstreamResult, error) {
	s, err := c.Login(ctx, creds)
	if err != nil {
		return catalog.UpstreamResult{}, errors.Wrap(err, "login")
	}
	res, err := c.catalog.FetchCatalog(ctx, bff.Options{
		Categories: categories,
		Session:    s,
	})
	if err != nil {
		return catalog.UpstreamResult{}, errors.Wrap(err, "fetch catalog")
	}
	return res, nil
}
