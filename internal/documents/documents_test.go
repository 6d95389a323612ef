package documents_test

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"

	"howett.net/plist"

	"capflow/internal/documents"
)

const dispatchXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>songList</key>
  <array>
    <dict>
      <key>hls-playlist-url</key>
      <string>https://aod.example.com/item/master.m3u8?a=1</string>
      <key>assets</key>
      <array>
        <dict>
          <key>metadata</key>
          <dict>
            <key>itemName</key>
            <string>Night Drive</string>
          </dict>
        </dict>
      </array>
    </dict>
  </array>
</dict>
</plist>`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=256000,CODECS="mp4a.40.2"
P256/prog.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=64000
https://cdn.example.com/abs/P64.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=128000
../other/P128.m3u8?x=2
#EXT-X-STREAM-INF:BANDWIDTH=256000,CODECS="mp4a.40.2"
P256/prog.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:5
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://key-1",KEYFORMAT="com.apple.streamingkeydelivery",KEYFORMATVERSIONS="1"
#EXTINF:9.98,
seg0.mp4
#EXT-X-KEY:METHOD=NONE
#EXTINF:9.98,
seg1.mp4
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://key-2"
#EXTINF:9.98,
seg2.mp4
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://key-1"
#EXTINF:9.98,
seg3.mp4
#EXT-X-ENDLIST
`

func TestDecodeDispatchXML(t *testing.T) {
	got, err := documents.DecodeDispatch([]byte(dispatchXML))
	if err != nil {
		t.Fatalf("DecodeDispatch failed: %v", err)
	}
	if got.PlaylistURL != "https://aod.example.com/item/master.m3u8?a=1" {
		t.Fatalf("playlist url = %q", got.PlaylistURL)
	}
	if got.Title != "Night Drive" || got.DisplayTitle() != "Night Drive" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestDecodeDispatchBinaryWithoutTitle(t *testing.T) {
	body, err := plist.Marshal(map[string]any{
		"songList": []any{
			map[string]any{"hls-playlist-url": "https://aod.example.com/x/master.m3u8"},
		},
	}, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("marshal binary plist: %v", err)
	}

	got, err := documents.DecodeDispatch(body)
	if err != nil {
		t.Fatalf("DecodeDispatch failed: %v", err)
	}
	if got.PlaylistURL != "https://aod.example.com/x/master.m3u8" {
		t.Fatalf("playlist url = %q", got.PlaylistURL)
	}
	if got.DisplayTitle() != documents.UnknownTitle {
		t.Fatalf("display title = %q, want %q", got.DisplayTitle(), documents.UnknownTitle)
	}
}

func TestDecodeDispatchRejectsMalformed(t *testing.T) {
	marshal := func(v any) []byte {
		t.Helper()
		body, err := plist.Marshal(v, plist.XMLFormat)
		if err != nil {
			t.Fatalf("marshal plist: %v", err)
		}
		return body
	}

	cases := map[string][]byte{
		"empty":            nil,
		"no song list":     marshal(map[string]any{"status": 0}),
		"empty song list":  marshal(map[string]any{"songList": []any{}}),
		"missing url":      marshal(map[string]any{"songList": []any{map[string]any{"assets": []any{}}}}),
		"relative url":     marshal(map[string]any{"songList": []any{map[string]any{"hls-playlist-url": "master.m3u8"}}}),
		"song list scalar": marshal(map[string]any{"songList": "oops"}),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := documents.DecodeDispatch(body); !errors.Is(err, documents.ErrFormatInvalid) {
				t.Fatalf("expected ErrFormatInvalid, got %v", err)
			}
		})
	}
}

func TestDecodePlaylistResolvesAndDedupesVariants(t *testing.T) {
	got, err := documents.DecodePlaylist("https://aod.example.com/item/master.m3u8?a=1", []byte(masterPlaylist))
	if err != nil {
		t.Fatalf("DecodePlaylist failed: %v", err)
	}
	want := []string{
		"https://aod.example.com/item/P256/prog.m3u8?a=1",
		"https://cdn.example.com/abs/P64.m3u8",
		"https://aod.example.com/other/P128.m3u8?x=2",
	}
	if !got.IsVariant {
		t.Fatal("expected IsVariant")
	}
	if !reflect.DeepEqual(got.VariantURLs, want) {
		t.Fatalf("variants = %v, want %v", got.VariantURLs, want)
	}
}

func TestDecodePlaylistRejectsMediaPlaylist(t *testing.T) {
	_, err := documents.DecodePlaylist("https://aod.example.com/item/master.m3u8", []byte(mediaPlaylist))
	if !errors.Is(err, documents.ErrNotVariant) {
		t.Fatalf("expected ErrNotVariant, got %v", err)
	}
	if !errors.Is(err, documents.ErrFormatInvalid) {
		t.Fatalf("expected ErrNotVariant to classify as ErrFormatInvalid, got %v", err)
	}
}

func TestDecodePlaylistRejectsGarbage(t *testing.T) {
	_, err := documents.DecodePlaylist("https://aod.example.com/item/master.m3u8", []byte("<html>nope</html>"))
	if !errors.Is(err, documents.ErrFormatInvalid) {
		t.Fatalf("expected ErrFormatInvalid, got %v", err)
	}
}

func TestResolveVariantURL(t *testing.T) {
	base, err := url.Parse("https://host.example.com/a/b/master.m3u8?token=t")
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	tests := []struct {
		uri  string
		want string
	}{
		{"v.m3u8", "https://host.example.com/a/b/v.m3u8?token=t"},
		{"sub/v.m3u8?own=1", "https://host.example.com/a/b/sub/v.m3u8?own=1"},
		{"/root/v.m3u8", "https://host.example.com/root/v.m3u8?token=t"},
		{"https://other.example.com/v.m3u8", "https://other.example.com/v.m3u8"},
	}
	for _, tt := range tests {
		got, err := documents.ResolveVariantURL(base, tt.uri)
		if err != nil {
			t.Errorf("ResolveVariantURL(%q) error: %v", tt.uri, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveVariantURL(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestDecodeVariantCollectsKeyURIs(t *testing.T) {
	got, err := documents.DecodeVariant([]byte(mediaPlaylist))
	if err != nil {
		t.Fatalf("DecodeVariant failed: %v", err)
	}
	want := []string{"skd://key-1", "skd://key-2"}
	if !reflect.DeepEqual(got.KeyURIs, want) {
		t.Fatalf("key uris = %v, want %v", got.KeyURIs, want)
	}
}

func TestDecodeVariantKeepsConsecutiveAndTrailingKeys(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-KEY:METHOD=SAMPLE-AES,URI=\"skd://itunes.apple.com/P000000000/s1/e1\",KEYFORMAT=\"com.apple.streamingkeydelivery\"\n" +
		"#EXT-X-KEY:METHOD=SAMPLE-AES,URI=\"skd://track-key-1\",KEYFORMAT=\"com.apple.streamingkeydelivery\"\n" +
		"#EXTINF:9.0,\nseg0.mp4\n" +
		"#EXT-X-KEY:METHOD=SAMPLE-AES,URI=\"skd://track-key-2\"\n" +
		"#EXT-X-KEY:METHOD=NONE\n" +
		"#EXT-X-ENDLIST\n"
	got, err := documents.DecodeVariant([]byte(body))
	if err != nil {
		t.Fatalf("DecodeVariant failed: %v", err)
	}
	want := []string{"skd://itunes.apple.com/P000000000/s1/e1", "skd://track-key-1", "skd://track-key-2"}
	if !reflect.DeepEqual(got.KeyURIs, want) {
		t.Fatalf("key uris = %v, want %v", got.KeyURIs, want)
	}
}

func TestDecodeVariantWithoutKeys(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:9.0,\nseg0.mp4\n#EXT-X-ENDLIST\n"
	got, err := documents.DecodeVariant([]byte(body))
	if err != nil {
		t.Fatalf("DecodeVariant failed: %v", err)
	}
	if len(got.KeyURIs) != 0 {
		t.Fatalf("expected no keys, got %v", got.KeyURIs)
	}
}

func TestDecodeVariantRejectsMasterPlaylist(t *testing.T) {
	_, err := documents.DecodeVariant([]byte(masterPlaylist))
	if !errors.Is(err, documents.ErrFormatInvalid) {
		t.Fatalf("expected ErrFormatInvalid, got %v", err)
	}
	if errors.Is(err, documents.ErrNotVariant) {
		t.Fatalf("master at variant stage should not report ErrNotVariant: %v", err)
	}
}

func TestDecodeKey(t *testing.T) {
	issued := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	key, err := documents.DecodeKey(
		[]byte(`{"keyUri":"skd://key-1","challenge":"abc"}`),
		[]byte(`{"ckc":"Q0tDREFUQQ==","renew-after":3600}`),
		issued,
	)
	if err != nil {
		t.Fatalf("DecodeKey failed: %v", err)
	}
	if key.URI != "skd://key-1" || key.CKC != "Q0tDREFUQQ==" {
		t.Fatalf("unexpected key %+v", key)
	}
	if !key.Expiration.Equal(issued.Add(time.Hour)) {
		t.Fatalf("expiration = %v, want %v", key.Expiration, issued.Add(time.Hour))
	}
	if key.Expired(issued.Add(30 * time.Minute)) {
		t.Fatal("key should not be expired before renew-after elapses")
	}
	if !key.Expired(issued.Add(2 * time.Hour)) {
		t.Fatal("key should be expired after renew-after elapses")
	}
}

func TestDecodeKeyWithoutRenewAfterNeverExpires(t *testing.T) {
	key, err := documents.DecodeKey([]byte(`{"keyUri":"skd://k"}`), []byte(`{"ckc":"x"}`), time.Now())
	if err != nil {
		t.Fatalf("DecodeKey failed: %v", err)
	}
	if !key.Expiration.IsZero() || key.Expired(time.Now().Add(time.Hour)) {
		t.Fatalf("expected no expiration, got %v", key.Expiration)
	}
}

func TestDecodeKeyRejectsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		response string
	}{
		{"request not json", `keyUri=skd://k`, `{"ckc":"x"}`},
		{"missing keyUri", `{"challenge":"abc"}`, `{"ckc":"x"}`},
		{"response not json", `{"keyUri":"skd://k"}`, `<html/>`},
		{"missing ckc", `{"keyUri":"skd://k"}`, `{"renew-after":10}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := documents.DecodeKey([]byte(tt.request), []byte(tt.response), time.Now())
			if !errors.Is(err, documents.ErrFormatInvalid) {
				t.Fatalf("expected ErrFormatInvalid, got %v", err)
			}
		})
	}
}

func TestWrapDefaultsMarkerAndKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := documents.Wrap(nil, "dispatch", "decode", cause)
	if !errors.Is(err, documents.ErrFormatInvalid) || !errors.Is(err, cause) {
		t.Fatalf("expected marker and cause to be preserved, got %v", err)
	}
	if got, want := err.Error(), "format invalid: dispatch: decode: boom"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
