package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSite is a fake booking site: a login endpoint that 302s to the
// homepage with session parameters in the query, plus whatever page
// handlers a test registers.
type testSite struct {
	srv       *httptest.Server
	mux       *http.ServeMux
	authCalls atomic.Int32
	authDelay time.Duration
	host      string
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	ts := &testSite{mux: http.NewServeMux()}
	ts.mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		ts.authCalls.Add(1)
		if ts.authDelay > 0 {
			time.Sleep(ts.authDelay)
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s3cret", Path: "/"})
		http.Redirect(w, r, "/home?sessionId=abc123&a=2&b=3&weekOffset=1", http.StatusFound)
	})
	ts.srv = httptest.NewServer(ts.mux)
	t.Cleanup(ts.srv.Close)

	u, err := url.Parse(ts.srv.URL)
	require.NoError(t, err)
	ts.host = u.Host
	return ts
}

func (ts *testSite) session(t *testing.T) *Session {
	t.Helper()
	s, err := New(Config{
		AuthURL:      ts.srv.URL + "/auth",
		HomepageHost: ts.host,
		HomepagePath: "/home",
		Username:     "alice",
		MaxRedirects: 5,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// age pushes the session's clock forward so the current auth state looks
// d old without sleeping.
func age(s *Session, d time.Duration) {
	s.now = func() time.Time { return time.Now().Add(d) }
}

func TestRequestAuthenticatesOnce(t *testing.T) {
	site := newTestSite(t)
	var sawCookie atomic.Bool
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil && c.Value == "s3cret" {
			sawCookie.Store(true)
		}
		w.Write([]byte("ok"))
	})
	s := site.session(t)

	for i := 0; i < 3; i++ {
		res, err := s.Request(context.Background(), site.srv.URL+"/page", Options{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "ok", string(res.Body))
	}

	assert.Equal(t, int32(1), site.authCalls.Load(), "fresh auth state must be reused")
	assert.True(t, sawCookie.Load(), "login cookie must ride along on page requests")
}

func TestConcurrentRequestsShareOneLogin(t *testing.T) {
	site := newTestSite(t)
	site.authDelay = 50 * time.Millisecond
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	s := site.session(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Request(context.Background(), site.srv.URL+"/page", Options{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), site.authCalls.Load(), "concurrent refreshes must collapse into one exchange")
}

func TestRefreshSurvivesWaiterCancellation(t *testing.T) {
	site := newTestSite(t)
	site.authDelay = 200 * time.Millisecond
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	s := site.session(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var cancelledErr, otherErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelledErr = s.Request(ctx, site.srv.URL+"/page", Options{})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		_, otherErr = s.Request(context.Background(), site.srv.URL+"/page", Options{})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.ErrorIs(t, cancelledErr, context.Canceled)
	assert.NoError(t, otherErr, "the in-flight exchange must keep serving other waiters")
	assert.Equal(t, int32(1), site.authCalls.Load())
}

func TestAuthStateParsing(t *testing.T) {
	site := newTestSite(t)
	s := site.session(t)

	state, err := s.ensureAuth(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, state.WeekOffset())
	params := state.Params()
	assert.Equal(t, "abc123", params.Get("sessionId"))
	assert.Equal(t, "2", params.Get("a"))
	assert.False(t, params.Has("weekOffset"), "weekOffset is carried separately, not propagated")
}

func TestSessionParamInjection(t *testing.T) {
	site := newTestSite(t)
	var got url.Values
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte("ok"))
	})
	s := site.session(t)
	ctx := context.Background()

	_, err := s.Request(ctx, site.srv.URL+"/page?a=1", Options{SessionParams: AllParams()})
	require.NoError(t, err)
	assert.Equal(t, "1", got.Get("a"), "the URL's own value wins over the session's")
	assert.Equal(t, "3", got.Get("b"))
	assert.Equal(t, "abc123", got.Get("sessionId"))

	_, err = s.Request(ctx, site.srv.URL+"/page?a=1", Options{SessionParams: Params("b")})
	require.NoError(t, err)
	assert.Equal(t, "3", got.Get("b"))
	assert.False(t, got.Has("sessionId"), "unlisted session parameters stay out")

	_, err = s.Request(ctx, site.srv.URL+"/page", Options{})
	require.NoError(t, err)
	assert.Empty(t, got, "the zero policy injects nothing")
}

func TestErrorPageWithFreshStateFailsFast(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/Error.aspx", http.StatusFound)
	})
	s := site.session(t)

	_, err := s.Request(context.Background(), site.srv.URL+"/page", Options{})
	assert.ErrorIs(t, err, ErrServerErroring)
	assert.Equal(t, int32(1), site.authCalls.Load(), "a just-issued state must not trigger re-auth")
}

func TestErrorPageWithAgedStateRetriesOnce(t *testing.T) {
	site := newTestSite(t)
	var pageCalls atomic.Int32
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if pageCalls.Add(1) == 1 {
			http.Redirect(w, r, "/Error.aspx", http.StatusFound)
			return
		}
		w.Write([]byte("ok"))
	})
	s := site.session(t)

	_, err := s.ensureAuth(context.Background())
	require.NoError(t, err)
	age(s, 10*time.Minute)

	res, err := s.Request(context.Background(), site.srv.URL+"/page", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res.Body))
	assert.Equal(t, int32(2), site.authCalls.Load(), "aged state plus error page means one re-login")
}

func TestPersistentErrorPageGivesUp(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/Error.aspx", http.StatusFound)
	})
	s := site.session(t)

	_, err := s.ensureAuth(context.Background())
	require.NoError(t, err)
	age(s, 10*time.Minute)

	_, err = s.Request(context.Background(), site.srv.URL+"/page", Options{})
	assert.ErrorIs(t, err, ErrServerErroring)
	assert.Equal(t, int32(2), site.authCalls.Load(), "one re-login, then fail rather than loop")
}

func TestStaleStateRefreshedBeforeUse(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	s := site.session(t)

	_, err := s.ensureAuth(context.Background())
	require.NoError(t, err)
	age(s, MaxAuthAge+time.Minute)

	_, err = s.Request(context.Background(), site.srv.URL+"/page", Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), site.authCalls.Load())
}

func TestRedirectsFollowedWhenAsked(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	site.mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("landed"))
	})
	s := site.session(t)
	ctx := context.Background()

	res, err := s.Request(ctx, site.srv.URL+"/page", Options{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, "landed", string(res.Body))

	res, err = s.Request(ctx, site.srv.URL+"/page", Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/final", res.Location())
}

func TestTooManyRedirects(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	s := site.session(t)

	target := site.srv.URL + "/loop"
	_, err := s.Request(context.Background(), target, Options{FollowRedirects: true})
	require.ErrorIs(t, err, ErrTooManyRedirects)
	assert.Contains(t, err.Error(), target, "the error must name the URL that looped")
}

func TestRedirectWithoutLocation(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	s := site.session(t)

	_, err := s.Request(context.Background(), site.srv.URL+"/page", Options{})
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestLoginNotRedirecting(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/badauth", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("maintenance"))
	})
	s := site.session(t)
	s.cfg.AuthURL = site.srv.URL + "/badauth"

	_, err := s.Request(context.Background(), site.srv.URL+"/page", Options{})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestLoginChainNeverReachingHomepage(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/spin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/spin", http.StatusFound)
	})
	s := site.session(t)
	s.cfg.AuthURL = site.srv.URL + "/spin"

	_, err := s.Request(context.Background(), site.srv.URL+"/page", Options{})
	require.ErrorIs(t, err, ErrTooManyRedirects)
	assert.Contains(t, err.Error(), "/spin")
}

func TestLoginSendsUsername(t *testing.T) {
	site := newTestSite(t)
	var gotUser atomic.Value
	site.mux.HandleFunc("/checkauth", func(w http.ResponseWriter, r *http.Request) {
		gotUser.Store(r.URL.Query().Get("username"))
		http.Redirect(w, r, "/home?sessionId=abc123&weekOffset=0", http.StatusFound)
	})
	s := site.session(t)
	s.cfg.AuthURL = site.srv.URL + "/checkauth"

	_, err := s.ensureAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", gotUser.Load())
}

func TestBadWeekOffsetFailsLogin(t *testing.T) {
	site := newTestSite(t)
	site.mux.HandleFunc("/oddauth", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home?sessionId=abc123&weekOffset=next", http.StatusFound)
	})
	s := site.session(t)
	s.cfg.AuthURL = site.srv.URL + "/oddauth"

	_, err := s.ensureAuth(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed))
}
