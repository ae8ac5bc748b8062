// Package session maintains an authenticated browsing context against the
// booking site: cookies, the opaque query parameters the site threads
// through every URL, and the redirect-based login dance that produces them.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// MinAuthAge: if the site bounces us to its error page while the auth
	// state is younger than this, the server is erroring on its own and a
	// fresh login would not help.
	MinAuthAge = 5 * time.Minute

	// MaxAuthAge: auth states older than this are refreshed before use.
	MaxAuthAge = time.Hour
)

// errorPagePath is the tail of the site's generic error page path. Being
// redirected there mid-request usually means the session expired.
const errorPagePath = "Error.aspx"

// Config carries the fixed endpoints of one booking site deployment.
type Config struct {
	// AuthURL is the login entry point; requesting it with a username
	// starts the redirect chain that ends on the homepage.
	AuthURL string

	// HomepageHost and HomepagePath identify the landing page whose query
	// string carries the session parameters.
	HomepageHost string
	HomepagePath string

	Username string

	// MaxRedirects bounds every redirect chain, login included.
	MaxRedirects int
}

// AuthState is an immutable snapshot of the session query parameters plus
// the time they were obtained. Replaced wholesale by a refresh, never
// mutated.
type AuthState struct {
	params     url.Values
	weekOffset int
	issuedAt   time.Time
}

// Params returns a copy of the session query parameters.
func (a *AuthState) Params() url.Values {
	out := make(url.Values, len(a.params))
	for k, vs := range a.params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// WeekOffset is the session-relative week the site landed us on. Kept out
// of the propagated parameters.
func (a *AuthState) WeekOffset() int { return a.weekOffset }

func (a *AuthState) IssuedAt() time.Time { return a.issuedAt }

// ParamPolicy selects which session parameters get injected into an
// outgoing URL. The zero value injects none.
type ParamPolicy struct {
	all  bool
	keys []string
}

// NoParams injects no session parameters.
func NoParams() ParamPolicy { return ParamPolicy{} }

// AllParams injects every session parameter the URL does not already set.
func AllParams() ParamPolicy { return ParamPolicy{all: true} }

// Params injects only the named session parameters, again letting the
// URL's own values win.
func Params(keys ...string) ParamPolicy { return ParamPolicy{keys: keys} }

func (p ParamPolicy) wants(key string) bool {
	if p.all {
		return true
	}
	for _, k := range p.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Options controls a single Request call.
type Options struct {
	// FollowRedirects makes Request walk ordinary redirects itself. When
	// false the first non-error redirect is returned as-is so the caller
	// can look at its Location.
	FollowRedirects bool

	// SessionParams picks the session parameters merged into the URL.
	SessionParams ParamPolicy
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Location returns the response's Location header, if any.
func (r *Response) Location() string { return r.Header.Get("Location") }

// Session owns the cookie jar and auth state shared by all requests
// against one site. Safe for concurrent use; concurrent refreshes collapse
// into a single login exchange.
type Session struct {
	cfg Config
	hc  *http.Client

	mu    sync.Mutex
	state *AuthState

	group singleflight.Group

	now func() time.Time
}

// New creates a Session. The underlying client never auto-follows
// redirects: the login flow needs to observe every hop, and ordinary
// requests follow them explicitly in Request.
func New(cfg Config) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg: cfg,
		hc: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now: time.Now,
	}, nil
}

// Close releases the session's idle connections. Cookies live for the
// session's lifetime and die with it.
func (s *Session) Close() {
	s.hc.CloseIdleConnections()
}

// Request issues an authenticated GET against rawURL. It refreshes the
// auth state when absent or stale, merges session parameters per the
// policy, and transparently re-authenticates once if the server bounces
// the request to its error page with an aged auth state.
func (s *Session) Request(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	// One re-auth retry at most. A second error-page bounce lands on a
	// freshly-issued state and fails the MinAuthAge check instead of
	// looping.
	for attempt := 0; ; attempt++ {
		res, retry, err := s.attempt(ctx, rawURL, opts)
		if err != nil {
			return nil, err
		}
		if !retry {
			return res, nil
		}
		if attempt >= 1 {
			return nil, ErrServerErroring
		}
	}
}

// attempt runs one pass of the request loop. retry means the auth state
// was refreshed and the whole call should restart with its original
// arguments.
func (s *Session) attempt(ctx context.Context, rawURL string, opts Options) (res *Response, retry bool, err error) {
	state, err := s.ensureAuth(ctx)
	if err != nil {
		return nil, false, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false, fmt.Errorf("parse request url: %w", err)
	}
	attachParams(u, state, opts.SessionParams)

	for redirects := 0; ; redirects++ {
		res, err = s.get(ctx, u)
		if err != nil {
			return nil, false, err
		}
		if res.StatusCode != http.StatusMovedPermanently && res.StatusCode != http.StatusFound {
			return res, false, nil
		}

		loc := res.Location()
		if loc == "" {
			return nil, false, ErrMissingLocation
		}
		next, err := u.Parse(loc)
		if err != nil {
			return nil, false, fmt.Errorf("resolve redirect target: %w", err)
		}

		if strings.HasSuffix(next.Path, errorPagePath) {
			if s.now().Sub(state.issuedAt) < MinAuthAge {
				return nil, false, ErrServerErroring
			}
			if _, err := s.refresh(ctx); err != nil {
				return nil, false, err
			}
			return nil, true, nil
		}

		if !opts.FollowRedirects {
			// Caller may want the Location header itself.
			return res, false, nil
		}
		if redirects >= s.cfg.MaxRedirects {
			return nil, false, fmt.Errorf("%w: %s", ErrTooManyRedirects, rawURL)
		}
		u = next
		attachParams(u, state, opts.SessionParams)
	}
}

// ensureAuth returns the current auth state, refreshing first when it is
// absent or older than MaxAuthAge.
func (s *Session) ensureAuth(ctx context.Context) (*AuthState, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != nil && s.now().Sub(state.issuedAt) < MaxAuthAge {
		return state, nil
	}
	return s.refresh(ctx)
}

// refresh runs the login exchange, collapsing concurrent callers onto one
// in-flight exchange. A caller cancelling its context abandons only its
// own wait: the exchange keeps running for the other waiters.
func (s *Session) refresh(ctx context.Context) (*AuthState, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		// Another caller may have completed a refresh between our
		// staleness check and this one starting; a just-issued state is
		// good as-is.
		s.mu.Lock()
		current := s.state
		s.mu.Unlock()
		if current != nil && s.now().Sub(current.issuedAt) < MinAuthAge {
			return current, nil
		}

		state, err := s.authenticate(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.state = state
		s.mu.Unlock()
		return state, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*AuthState), nil
	}
}

// authenticate walks the login redirect chain. Every hop must be a 302
// with a Location; the chain ends when a hop resolves to the configured
// homepage, whose query string becomes the new session parameter set.
func (s *Session) authenticate(ctx context.Context) (*AuthState, error) {
	u, err := url.Parse(s.cfg.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("parse auth url: %w", err)
	}
	q := u.Query()
	q.Set("username", s.cfg.Username)
	u.RawQuery = q.Encode()

	for redirects := 0; ; redirects++ {
		res, err := s.get(ctx, u)
		if err != nil {
			return nil, err
		}
		loc := res.Location()
		if res.StatusCode != http.StatusFound || loc == "" {
			return nil, fmt.Errorf("%w: login chain answered %d without redirect", ErrAuthFailed, res.StatusCode)
		}
		next, err := u.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("%w: unresolvable Location %q", ErrAuthFailed, loc)
		}
		u = next
		if u.Host == s.cfg.HomepageHost && u.Path == s.cfg.HomepagePath {
			break
		}
		if redirects >= s.cfg.MaxRedirects {
			return nil, fmt.Errorf("%w: %s", ErrTooManyRedirects, s.cfg.AuthURL)
		}
	}

	params := u.Query()
	weekOffset := 0
	if v := params.Get("weekOffset"); v != "" {
		weekOffset, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: weekOffset %q is not an integer", ErrAuthFailed, v)
		}
	}
	params.Del("weekOffset")

	return &AuthState{
		params:     params,
		weekOffset: weekOffset,
		issuedAt:   s.now(),
	}, nil
}

// get issues one GET and drains the body. Transport failures pass through
// wrapped; nothing here retries.
func (s *Session) get(ctx context.Context, u *url.URL) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, nil
}

// attachParams merges the selected session parameters into u's query.
// Keys the URL already sets are never overridden: the URL's own value
// wins.
func attachParams(u *url.URL, state *AuthState, policy ParamPolicy) {
	q := u.Query()
	for key, vals := range state.params {
		if q.Has(key) || !policy.wants(key) {
			continue
		}
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
}
