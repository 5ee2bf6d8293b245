package media

import (
	"net/url"
	"regexp"
	"strings"

	"quiztube/internal/domain"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtu.be":                 true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

// ValidateURL checks that raw points at a single YouTube video and returns its id.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewInvalidSourceError("video url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", domain.NewInvalidSourceError("video url is not a valid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.NewInvalidSourceError("video url must use http or https")
	}

	host := strings.ToLower(u.Hostname())
	if !youtubeHosts[host] {
		return "", domain.NewInvalidSourceError("video url is not a YouTube url").WithContext("host", host)
	}

	var id string
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case host == "youtu.be":
		id = segments[0]
	case u.Path == "/watch":
		id = u.Query().Get("v")
	case len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live" || segments[0] == "v"):
		id = segments[1]
	}

	if !videoIDPattern.MatchString(id) {
		return "", domain.NewInvalidSourceError("video url does not reference a video")
	}
	return id, nil
}

// CanonicalURL is the watch url for a video id.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
