package documents

import (
	"net/url"
	"strings"

	"howett.net/plist"
)

// UnknownTitle is displayed for sessions whose dispatch document carries no title.
const UnknownTitle = "(Unknown)"

// Dispatch is the decoded playback dispatch document that opens a session.
type Dispatch struct {
	PlaylistURL string
	Title       string
	Raw         []byte
}

// DisplayTitle returns the title or UnknownTitle.
func (d Dispatch) DisplayTitle() string {
	if strings.TrimSpace(d.Title) == "" {
		return UnknownTitle
	}
	return d.Title
}

type dispatchPlist struct {
	SongList []dispatchSong `plist:"songList"`
}

type dispatchSong struct {
	PlaylistURL string          `plist:"hls-playlist-url"`
	Assets      []dispatchAsset `plist:"assets"`
}

type dispatchAsset struct {
	Metadata struct {
		ItemName string `plist:"itemName"`
	} `plist:"metadata"`
}

// DecodeDispatch reads an XML or binary property list and extracts the first
// song's playlist URL and title. Dispatch responses that are not song
// downloads lack songList and are reported as ErrFormatInvalid.
func DecodeDispatch(body []byte) (Dispatch, error) {
	if len(body) == 0 {
		return Dispatch{}, Wrap(ErrFormatInvalid, "dispatch", "empty body", nil)
	}

	var doc dispatchPlist
	if _, err := plist.Unmarshal(body, &doc); err != nil {
		return Dispatch{}, Wrap(ErrFormatInvalid, "dispatch", "decode plist", err)
	}
	if len(doc.SongList) == 0 {
		return Dispatch{}, Wrap(ErrFormatInvalid, "dispatch", "songList missing or empty", nil)
	}

	song := doc.SongList[0]
	playlistURL := strings.TrimSpace(song.PlaylistURL)
	if playlistURL == "" {
		return Dispatch{}, Wrap(ErrFormatInvalid, "dispatch", "hls-playlist-url missing", nil)
	}
	parsed, err := url.Parse(playlistURL)
	if err != nil {
		return Dispatch{}, Wrap(ErrFormatInvalid, "dispatch", "hls-playlist-url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Dispatch{}, Wrap(ErrFormatInvalid, "dispatch", "hls-playlist-url is not an http(s) URL", nil)
	}

	var title string
	if len(song.Assets) > 0 {
		title = strings.TrimSpace(song.Assets[0].Metadata.ItemName)
	}

	return Dispatch{PlaylistURL: playlistURL, Title: title, Raw: body}, nil
}
