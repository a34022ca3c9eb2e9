// Package igerror classifies Instagram Graph API failures into a closed set
// of codes and decides whether, and after how long, a publish may be retried.
package igerror

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

type Code string

const (
	CodeTokenExpired      Code = "TOKEN_EXPIRED"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeRateLimit         Code = "RATE_LIMIT"
	CodeInvalidMedia      Code = "INVALID_MEDIA"
	CodeMediaTooLarge     Code = "MEDIA_TOO_LARGE"
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeTemporaryError    Code = "TEMPORARY_ERROR"
	CodeNetworkError      Code = "NETWORK_ERROR"
	CodeProcessingTimeout Code = "PROCESSING_TIMEOUT"
	CodeUnknownError      Code = "UNKNOWN_ERROR"
)

// Codes lists every classification code.
var Codes = []Code{
	CodeTokenExpired, CodeInvalidToken, CodePermissionDenied, CodeRateLimit,
	CodeInvalidMedia, CodeMediaTooLarge, CodeUnsupportedFormat,
	CodeTemporaryError, CodeNetworkError, CodeProcessingTimeout, CodeUnknownError,
}

// ParseCode maps a stored code back to a Code. Unrecognised strings are
// reported as not ok.
func ParseCode(s string) (Code, bool) {
	for _, c := range Codes {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Classification is the structured view of a failed publish step.
type Classification struct {
	Code              Code   `json:"code"`
	Message           string `json:"message"`
	Retryable         bool   `json:"retryable"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// APIError is the `error` object of a Graph API response.
type APIError struct {
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode,omitempty"`
	FbtraceID  string `json:"fbtrace_id,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("instagram api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("instagram api error: %s", e.Message)
}

// ProcessingError reports a media container that never reached FINISHED.
type ProcessingError struct {
	ContainerID string
	LastStatus  string
	Attempts    int
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("media processing failed: %s after %d polls", e.LastStatus, e.Attempts)
}


// FormatError is raised before any remote call when the asset is not a
// container Reels accepts.
type FormatError struct {
	Detected string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported video format: %s", e.Detected)
}

var graphCodes = map[int]Code{
	190: CodeTokenExpired,
	102: CodeTokenExpired,
	104: CodeInvalidToken,

	10:  CodePermissionDenied,
	200: CodePermissionDenied,
	230: CodePermissionDenied,

	4:   CodeRateLimit,
	17:  CodeRateLimit,
	32:  CodeRateLimit,
	613: CodeRateLimit,

	352:   CodeInvalidMedia,
	36003: CodeInvalidMedia,
	36000: CodeUnsupportedFormat,

	1: CodeTemporaryError,
	2: CodeTemporaryError,
}

// checked in order, first match wins
var messagePatterns = []struct {
	re   *regexp.Regexp
	code Code
}{
	{regexp.MustCompile(`(?i)expired`), CodeTokenExpired},
	{regexp.MustCompile(`(?i)invalid.*token`), CodeInvalidToken},
	{regexp.MustCompile(`(?i)permission`), CodePermissionDenied},
	{regexp.MustCompile(`(?i)rate.*limit`), CodeRateLimit},
	{regexp.MustCompile(`(?i)too.*large`), CodeMediaTooLarge},
	{regexp.MustCompile(`(?i)unsupported`), CodeUnsupportedFormat},
	{regexp.MustCompile(`(?i)timeout`), CodeProcessingTimeout},
	{regexp.MustCompile(`(?i)network`), CodeNetworkError},
}

// Classify converts err into a Classification using DefaultPolicy.
func Classify(err error, retryCount int) Classification {
	return DefaultPolicy.Classify(err, retryCount)
}

// Classify converts err into a Classification. retryCount is the number of
// failures recorded so far and only affects RetryAfterSeconds.
func (p Policy) Classify(err error, retryCount int) Classification {
	code, message := classify(err)
	return Classification{
		Code:              code,
		Message:           message,
		Retryable:         IsRetryable(code),
		RetryAfterSeconds: p.RetryDelay(code, retryCount),
	}
}

func classify(err error) (Code, string) {
	if err == nil {
		return CodeUnknownError, "Unknown error"
	}

	var procErr *ProcessingError
	if errors.As(err, &procErr) {
		return CodeProcessingTimeout, procErr.Error()
	}

	var fmtErr *FormatError
	if errors.As(err, &fmtErr) {
		return CodeUnsupportedFormat, fmtErr.Error()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "Unknown Instagram API error"
		}
		if code, ok := graphCodes[apiErr.Code]; ok && apiErr.Code != 0 {
			return code, message
		}
		if code, ok := graphCodes[apiErr.Subcode]; ok && apiErr.Subcode != 0 {
			return code, message
		}
		if code, ok := matchMessage(apiErr.Message); ok {
			return code, message
		}
		if apiErr.StatusCode >= 500 {
			return CodeTemporaryError, message
		}
		return CodeUnknownError, message
	}

	// transport failures never produced a structured response
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeNetworkError, err.Error()
	}

	if code, ok := matchMessage(err.Error()); ok {
		return code, err.Error()
	}
	return CodeUnknownError, err.Error()
}

func matchMessage(message string) (Code, bool) {
	if message == "" {
		return "", false
	}
	for _, p := range messagePatterns {
		if p.re.MatchString(message) {
			return p.code, true
		}
	}
	return "", false
}

// IsRetryable reports whether failures of this kind are expected to resolve
// on their own.
func IsRetryable(code Code) bool {
	switch code {
	case CodeRateLimit, CodeTemporaryError, CodeNetworkError, CodeProcessingTimeout:
		return true
	}
	return false
}

// ShouldRetry is true iff c is retryable and the ceiling has not been reached.
func ShouldRetry(c Classification, currentRetryCount, maxRetries int) bool {
	if !c.Retryable {
		return false
	}
	return currentRetryCount < maxRetries
}
