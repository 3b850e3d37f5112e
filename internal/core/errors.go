// Package core defines sentinel errors.
package core

import "errors"

// Datagram decapsulation errors. Each one drops a single datagram.
var (
	ErrTruncatedHeader   = errors.New("tzsp: truncated header")
	ErrUnsupportedFormat = errors.New("tzsp: packet format not understood")
	ErrTruncatedTag      = errors.New("tzsp: truncated tag")
	ErrMissingEndTag     = errors.New("tzsp: no END tag")
	ErrTruncatedFrame    = errors.New("tzsp: frame shorter than link header")
)

// Pipeline and configuration errors.
var (
	ErrPlanNotFound   = errors.New("tzspd: capture plan not found")
	ErrActionNotFound = errors.New("tzspd: action not found")
	ErrConfigInvalid  = errors.New("tzspd: invalid configuration")
)

// Reason maps a decapsulation error to a short label used in logs and
// metrics. Unknown errors map to "other".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTruncatedHeader):
		return "truncated_header"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrTruncatedTag):
		return "truncated_tag"
	case errors.Is(err, ErrMissingEndTag):
		return "missing_end_tag"
	case errors.Is(err, ErrTruncatedFrame):
		return "truncated_frame"
	default:
		return "other"
	}
}
