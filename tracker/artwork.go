package tracker

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/luma/squeeze/lms"
)

const (
	DefaultWebPort = 9000

	// Image kinds passed to ImageCache.
	KindBackground = "backgrounds"
	KindIcon       = "icons"
)

var ErrNoArtwork = errors.New("track has no artwork")

// ArtworkResolver turns a track into the URL of its cover image.
type ArtworkResolver interface {
	Resolve(track lms.Track) (string, error)
}

// ImageCache fetches and processes an image, returning the local path of
// the processed copy.
type ImageCache interface {
	CachedPath(url, kind string) (string, error)
}

// ServerArtwork resolves covers served by the web interface of the server.
type ServerArtwork struct {
	Host    string
	WebPort int
}

func NewServerArtwork(host string, webPort int) *ServerArtwork {
	if webPort == 0 {
		webPort = DefaultWebPort
	}

	return &ServerArtwork{Host: host, WebPort: webPort}
}

// Resolve prefers the artwork_url of remote tracks, which is either
// absolute or relative to the server, then the cover of a library track.
func (a *ServerArtwork) Resolve(track lms.Track) (string, error) {
	if artwork := track.ArtworkURL(); artwork != "" {
		if u, err := url.Parse(artwork); err == nil && u.IsAbs() {
			return artwork, nil
		}

		return a.url(strings.TrimPrefix(artwork, "/")), nil
	}

	if cover := track.CoverID(); cover != "" {
		return a.url("music/" + url.PathEscape(cover) + "/cover.jpg"), nil
	}

	return "", ErrNoArtwork
}

func (a *ServerArtwork) url(path string) string {
	return "http://" + net.JoinHostPort(a.Host, strconv.Itoa(a.WebPort)) + "/" + path
}
