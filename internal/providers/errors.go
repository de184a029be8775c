package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a review failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindTimeout
	KindRateLimit
	KindTransientServer
	KindParse
	KindRetriesExhausted
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindConfiguration:    "configuration",
	KindTimeout:          "timeout",
	KindRateLimit:        "rate_limit",
	KindTransientServer:  "transient_server",
	KindParse:            "parse",
	KindRetriesExhausted: "retries_exhausted",
	KindCancelled:        "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether the retry layer may attempt the call again.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindTransientServer, KindParse:
		return true
	}
	return false
}

// Sentinels for errors.Is matching against *Error values by kind.
var (
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrRateLimit        = &Error{Kind: KindRateLimit}
	ErrTransientServer  = &Error{Kind: KindTransientServer}
	ErrParse            = &Error{Kind: KindParse}
	ErrRetriesExhausted = &Error{Kind: KindRetriesExhausted}
	ErrCancelled        = &Error{Kind: KindCancelled}
)

// Error is the classified error returned by adapters, the registry and the
// retry layer.
type Error struct {
	Kind       Kind
	Provider   string
	Op         string
	StatusCode int
	// RetryAfter is the provider's requested wait, when it sent one.
	RetryAfter time.Duration
	// Raw holds the offending response text for parse failures.
	Raw string
	// Attempts is set by the retry layer on terminal errors.
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, which lets the package sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Cause returns the last classified error wrapped by a retries-exhausted
// error, or err itself otherwise.
func Cause(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRetriesExhausted && e.Err != nil {
		return e.Err
	}
	return err
}

// RawText returns the raw response attached to a parse failure anywhere in
// the chain.
func RawText(err error) (string, bool) {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return "", false
		}
		if e.Kind == KindParse {
			return e.Raw, true
		}
		err = e.Err
	}
	return "", false
}

// IsConfigurationError reports whether err is a fatal setup problem such as a
// malformed credential or an unknown persona.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func configError(provider, op string, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Provider: provider, Op: op, Err: fmt.Errorf(format, args...)}
}
