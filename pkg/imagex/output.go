package imagex

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// URLer is implemented by provider output objects that expose their
// location through an accessor.
type URLer interface {
	URL() string
}

// NormalizeOutput reduces a provider's raw output to a single URL string.
// Accepted shapes: a list of outputs (the first element is used), a single
// object exposing a URL (URLer or a map with a "url" key), or a bare string.
// Anything else fails with ErrUnexpectedOutput.
func NormalizeOutput(raw any) (string, error) {
	if s, ok := single(raw); ok {
		return s, nil
	}

	v := reflect.ValueOf(raw)
	if v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) {
		if v.Len() == 0 {
			return "", unexpected(raw, "empty output list")
		}
		if s, ok := single(v.Index(0).Interface()); ok {
			return s, nil
		}
		return "", unexpected(raw, "unrecognized list element")
	}

	return "", unexpected(raw, "unrecognized output")
}

// single handles the non-list shapes
func single(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case URLer:
		return v.URL(), true
	case map[string]any:
		s, ok := v["url"].(string)
		return s, ok
	case map[string]string:
		s, ok := v["url"]
		return s, ok
	}
	return "", false
}

func unexpected(raw any, reason string) error {
	return imagexErrors.New(ErrUnexpectedOutput).
		WithDetail("reason", reason).
		WithDetail("output_type", fmt.Sprintf("%T", raw))
}

// ValidateURL accepts a non-empty string that starts with a URI scheme
func ValidateURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", imagexErrors.NewWithMessage(ErrInvalidURL, "image provider returned an empty URL")
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return "", imagexErrors.New(ErrInvalidURL).WithDetail("url", s)
	}
	return s, nil
}
