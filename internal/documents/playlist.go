package documents

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/grafov/m3u8"
)

// Playlist is the decoded HLS master playlist for a session.
type Playlist struct {
	IsVariant bool
	// VariantURLs lists every alternative the playlist offers, resolved to
	// absolute URLs, deduplicated, in playlist order.
	VariantURLs []string
	Raw         []byte
}

// DecodePlaylist parses a master playlist fetched from playlistURL. A media
// playlist is reported as ErrNotVariant.
func DecodePlaylist(playlistURL string, body []byte) (Playlist, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return Playlist{}, Wrap(ErrFormatInvalid, "playlist", "playlist url", err)
	}

	decoded, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return Playlist{}, Wrap(ErrFormatInvalid, "playlist", "decode m3u8", err)
	}
	if listType != m3u8.MASTER {
		return Playlist{}, Wrap(ErrNotVariant, "playlist", "", nil)
	}
	master, ok := decoded.(*m3u8.MasterPlaylist)
	if !ok {
		return Playlist{}, Wrap(ErrNotVariant, "playlist", "", nil)
	}

	seen := make(map[string]struct{}, len(master.Variants))
	urls := make([]string, 0, len(master.Variants))
	for _, variant := range master.Variants {
		if variant == nil || variant.Iframe || strings.TrimSpace(variant.URI) == "" {
			continue
		}
		resolved, err := ResolveVariantURL(base, variant.URI)
		if err != nil {
			return Playlist{}, Wrap(ErrFormatInvalid, "playlist", "variant uri", err)
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
	}
	if len(urls) == 0 {
		return Playlist{}, Wrap(ErrFormatInvalid, "playlist", "no variants listed", nil)
	}

	return Playlist{IsVariant: true, VariantURLs: urls, Raw: body}, nil
}

// ResolveVariantURL resolves a variant URI against the playlist URL it was
// listed in. Absolute URIs are returned unchanged. Relative URIs are joined to
// the playlist's directory and inherit the playlist's query string when they
// carry none of their own.
func ResolveVariantURL(playlist *url.URL, uri string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	resolved := *playlist
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if strings.HasPrefix(ref.Path, "/") {
		resolved.Path = path.Clean(ref.Path)
	} else {
		resolved.Path = path.Join(path.Dir(playlist.Path), ref.Path)
	}
	resolved.RawPath = ""
	if ref.RawQuery != "" {
		resolved.RawQuery = ref.RawQuery
	}
	return resolved.String(), nil
}
