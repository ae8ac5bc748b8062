package scrape

import "fmt"

// MarkupError reports that the page did not have the structure the
// extractor expects: a missing container, attribute, query key or a value
// in the wrong format. It always names the expectation that failed, since
// debugging a scraped format without that is hopeless.
type MarkupError struct {
	Expectation string
}

func (e *MarkupError) Error() string {
	return "markup mismatch: " + e.Expectation
}

func markupErrf(format string, args ...any) *MarkupError {
	return &MarkupError{Expectation: fmt.Sprintf(format, args...)}
}

// ServerError reports that the page was well-formed but carried the site's
// own error banner. Distinct from MarkupError: the shape was right, the
// server said no.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server reported an error: " + e.Message
}
