package documents

import (
	"bufio"
	"bytes"
	"slices"
	"strings"

	"github.com/grafov/m3u8"
)

// Variant is the decoded media playlist of the selected stream.
type Variant struct {
	// KeyURIs holds the distinct key identifiers the stream needs, sorted.
	KeyURIs []string
	Raw     []byte
}

// DecodeVariant parses a media playlist and collects the URIs of every
// EXT-X-KEY it carries. Keys with METHOD=NONE or no URI are not required.
func DecodeVariant(body []byte) (Variant, error) {
	decoded, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return Variant{}, Wrap(ErrFormatInvalid, "variant", "decode m3u8", err)
	}
	if listType != m3u8.MEDIA {
		return Variant{}, Wrap(ErrFormatInvalid, "variant", "master playlist where media playlist expected", nil)
	}
	media, ok := decoded.(*m3u8.MediaPlaylist)
	if !ok {
		return Variant{}, Wrap(ErrFormatInvalid, "variant", "unexpected playlist type", nil)
	}

	// The decoder keeps only the last of consecutive EXT-X-KEY tags and drops
	// tags after the final segment, so every tag line is decoded on its own.
	set := make(map[string]struct{})
	addKey(set, media.Key)
	for _, segment := range media.Segments {
		if segment == nil {
			continue
		}
		addKey(set, segment.Key)
	}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, keyTag) {
			continue
		}
		key, err := decodeKeyTag(line)
		if err != nil {
			return Variant{}, Wrap(ErrFormatInvalid, "variant", "decode key tag", err)
		}
		addKey(set, key)
	}
	if err := scanner.Err(); err != nil {
		return Variant{}, Wrap(ErrFormatInvalid, "variant", "scan media playlist", err)
	}

	uris := make([]string, 0, len(set))
	for uri := range set {
		uris = append(uris, uri)
	}
	slices.Sort(uris)

	return Variant{KeyURIs: uris, Raw: body}, nil
}

const keyTag = "#EXT-X-KEY:"

// decodeKeyTag runs a single EXT-X-KEY line through the m3u8 decoder by
// attaching it to a one-segment playlist.
func decodeKeyTag(line string) (*m3u8.Key, error) {
	playlist := "#EXTM3U\n" + line + "\n#EXTINF:1,\nsegment\n"
	decoded, _, err := m3u8.DecodeFrom(strings.NewReader(playlist), false)
	if err != nil {
		return nil, err
	}
	media, ok := decoded.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, nil
	}
	return media.Key, nil
}

func addKey(set map[string]struct{}, key *m3u8.Key) {
	if key == nil {
		return
	}
	if strings.EqualFold(strings.TrimSpace(key.Method), "NONE") {
		return
	}
	uri := strings.TrimSpace(key.URI)
	if uri == "" {
		return
	}
	set[uri] = struct{}{}
}
