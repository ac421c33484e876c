// Package metadata locates archived objects on the CDN and loads the chat
// replay document of a video.
package metadata

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// URLs builds CDN object URLs. Paths are absolute, so any path on the base URL
// is replaced rather than extended.
type URLs struct {
	base *url.URL
}

// NewURLs parses base, which must be an absolute http or https URL.
func NewURLs(base string) (URLs, error) {
	u, err := url.Parse(base)
	if err != nil {
		return URLs{}, fmt.Errorf("parse cdn base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return URLs{}, fmt.Errorf("cdn base url %q: scheme must be http or https", base)
	}
	if u.Host == "" {
		return URLs{}, fmt.Errorf("cdn base url %q: missing host", base)
	}
	return URLs{base: u}, nil
}

// Base returns the configured base URL.
func (c URLs) Base() string { return c.base.String() }

func (c URLs) object(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

// Metadata returns the chat document URL for a video.
func (c URLs) Metadata(uuid string) string {
	return c.object("/metadata/" + strings.ToLower(uuid))
}

// Cover returns the cover image URL for a content hash.
func (c URLs) Cover(hash string) string {
	return c.object("/cover/" + strings.ToLower(hash))
}

// Video returns the media URL of a public video.
func (c URLs) Video(room int64, uuid string) string {
	return c.object("/video/" + strconv.FormatInt(room, 10) + "/" + strings.ToLower(uuid))
}

// RestrictedVideo returns the media URL of a restricted video, which is
// stored under its access hash instead of its uuid.
func (c URLs) RestrictedVideo(room int64, hash string) string {
	return c.object("/video/" + strconv.FormatInt(room, 10) + "/" + strings.ToLower(hash))
}
