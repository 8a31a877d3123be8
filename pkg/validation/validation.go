package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var streamIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateCameraName checks operator-supplied camera names.
func ValidateCameraName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("camera name is required")
	}
	if utf8.RuneCountInString(name) > 120 {
		return fmt.Errorf("camera name is too long (max 120 characters)")
	}
	return nil
}

// ValidateStreamURL checks that a feed address is an absolute http(s) or
// rtsp/rtmp URL.
func ValidateStreamURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("stream url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid stream url: %v", err)
	}
	switch u.Scheme {
	case "http", "https", "rtsp", "rtmp":
	default:
		return fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("stream url is missing a host")
	}
	return nil
}

// ValidateStreamID checks a platform video identifier.
func ValidateStreamID(id string) error {
	if id == "" {
		return fmt.Errorf("stream id is required")
	}
	if !streamIDRegex.MatchString(id) {
		return fmt.Errorf("stream id contains invalid characters")
	}
	return nil
}

// ValidateSearchTerm checks free-text search input.
func ValidateSearchTerm(term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return fmt.Errorf("search term is required")
	}
	if utf8.RuneCountInString(term) > 200 {
		return fmt.Errorf("search term is too long (max 200 characters)")
	}
	return nil
}
