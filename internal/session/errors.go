package session

import "errors"

var (
	// ErrAuthFailed means the login redirect chain returned a
	// non-redirect, lost its Location header, or never reached the
	// homepage.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrTooManyRedirects is returned when a redirect chain (ordinary or
	// auth) exceeds the configured bound. Wrapped errors name the URL the
	// call started from, not the hop that tripped the limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrMissingLocation means the server answered 301/302 without a
	// Location header. Malformed server behavior, never retried.
	ErrMissingLocation = errors.New("invalid redirect, location header not provided")

	// ErrServerErroring means the server bounced us to its error page
	// while our auth state was fresh, so re-authenticating would not
	// help. Protects against refresh storms when the server itself is
	// down.
	ErrServerErroring = errors.New("server responded with an error")
)
