package domain

import "strings"

// ExtractYouTubeID reduces a watch URL to its bare video id. Inputs that are
// already bare ids pass through unchanged.
func ExtractYouTubeID(raw string) StreamIdentifier {
	id := raw
	switch {
	case strings.Contains(raw, "v="):
		id = strings.SplitN(strings.SplitN(raw, "v=", 2)[1], "&", 2)[0]
	case strings.Contains(raw, "youtu.be/"):
		id = strings.SplitN(strings.SplitN(raw, "youtu.be/", 2)[1], "?", 2)[0]
	}
	return StreamIdentifier(strings.TrimSpace(id))
}

// IsYouTubeURL reports whether the URL points at the platform rather than a
// direct media endpoint.
func IsYouTubeURL(raw string) bool {
	return strings.Contains(raw, "youtube.com") || strings.Contains(raw, "youtu.be")
}
