package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ownerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

var videoFilenamePattern = regexp.MustCompile(`^video_[0-9]+_(320p|480p|720p|1080p)\.mp4$`)

// ValidateSourceURL checks that a capture or variant URL is plain http(s)
// with a host. Sources are trusted, so no domain allowlist applies here.
func ValidateSourceURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return nil
}

// ValidateOwnerID checks that an owner identifier is safe to use as a
// directory name and a remote key segment. No leading dot, no separators.
func ValidateOwnerID(ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is empty")
	}
	if !ownerIDPattern.MatchString(ownerID) {
		return fmt.Errorf("owner id %q contains invalid characters", ownerID)
	}
	return nil
}

// ValidateVideoFilename checks that a requested filename matches the
// deterministic archive naming exactly. Anything else (including path
// traversal attempts) is rejected.
func ValidateVideoFilename(name string) error {
	if !videoFilenamePattern.MatchString(name) {
		return fmt.Errorf("filename %q is not an archived video name", name)
	}
	return nil
}
