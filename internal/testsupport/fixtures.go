package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"howett.net/plist"

	"capflow/internal/capture"
	"capflow/internal/config"
)

// FixtureTime is the timestamp of the first fixture transaction.
var FixtureTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// DispatchURL and KeyURL are the default endpoints the fixtures target.
var (
	DispatchURL = config.Default().Endpoints.DispatchURL
	KeyURL      = config.Default().Endpoints.KeyURL
)

// DispatchBody builds an XML plist dispatch response. An empty title omits
// the asset metadata.
func DispatchBody(t testing.TB, playlistURL, title string) []byte {
	t.Helper()

	song := map[string]any{"hls-playlist-url": playlistURL}
	if title != "" {
		song["assets"] = []any{
			map[string]any{"metadata": map[string]any{"itemName": title}},
		}
	}
	body, err := plist.Marshal(map[string]any{"songList": []any{song}}, plist.XMLFormat)
	if err != nil {
		t.Fatalf("marshal dispatch plist: %v", err)
	}
	return body
}

// MasterBody builds a master playlist listing variantURIs in order.
func MasterBody(variantURIs ...string) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for i, uri := range variantURIs {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=\"mp4a.40.2\"\n%s\n", (i+1)*64000, uri)
	}
	return []byte(b.String())
}

// MediaBody builds a media playlist with one segment per key URI, each
// segment preceded by its EXT-X-KEY.
func MediaBody(keyURIs ...string) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:5\n#EXT-X-TARGETDURATION:10\n#EXT-X-MEDIA-SEQUENCE:0\n")
	if len(keyURIs) == 0 {
		b.WriteString("#EXTINF:9.98,\nseg0.mp4\n")
	}
	for i, uri := range keyURIs {
		writeKeyLine(&b, uri)
		fmt.Fprintf(&b, "#EXTINF:9.98,\nseg%d.mp4\n", i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return []byte(b.String())
}

// StackedKeyMediaBody builds a media playlist whose headerKeys appear as
// consecutive EXT-X-KEY lines before the first segment and whose
// trailingKeys follow the last segment.
func StackedKeyMediaBody(headerKeys, trailingKeys []string) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:5\n#EXT-X-TARGETDURATION:10\n#EXT-X-MEDIA-SEQUENCE:0\n")
	for _, uri := range headerKeys {
		writeKeyLine(&b, uri)
	}
	b.WriteString("#EXTINF:9.98,\nseg0.mp4\n#EXTINF:9.98,\nseg1.mp4\n")
	for _, uri := range trailingKeys {
		writeKeyLine(&b, uri)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return []byte(b.String())
}

func writeKeyLine(b *strings.Builder, uri string) {
	fmt.Fprintf(b, "#EXT-X-KEY:METHOD=SAMPLE-AES,URI=\"%s\",KEYFORMAT=\"com.apple.streamingkeydelivery\"\n", uri)
}

// DispatchTx is a successful dispatch response pointing at playlistURL.
func DispatchTx(t testing.TB, playlistURL, title string) capture.Transaction {
	t.Helper()
	return capture.Transaction{
		Method:       "POST",
		URL:          DispatchURL,
		RequestBody:  []byte(`{"salableAdamId":"1"}`),
		Status:       200,
		ResponseBody: DispatchBody(t, playlistURL, title),
		Timestamp:    FixtureTime,
	}
}

// PlaylistTx is a master playlist fetch listing variantURIs.
func PlaylistTx(playlistURL string, variantURIs ...string) capture.Transaction {
	return capture.Transaction{
		Method:       "GET",
		URL:          playlistURL,
		Status:       200,
		ResponseBody: MasterBody(variantURIs...),
		Timestamp:    FixtureTime.Add(time.Second),
	}
}

// VariantTx is a media playlist fetch requiring keyURIs.
func VariantTx(variantURL string, keyURIs ...string) capture.Transaction {
	return capture.Transaction{
		Method:       "GET",
		URL:          variantURL,
		Status:       200,
		ResponseBody: MediaBody(keyURIs...),
		Timestamp:    FixtureTime.Add(2 * time.Second),
	}
}

// StackedKeyVariantTx is a media playlist fetch built by StackedKeyMediaBody.
func StackedKeyVariantTx(variantURL string, headerKeys, trailingKeys []string) capture.Transaction {
	tx := VariantTx(variantURL)
	tx.ResponseBody = StackedKeyMediaBody(headerKeys, trailingKeys)
	return tx
}

// KeyTx is a key-fetch exchange delivering ckc for keyURI with a one hour
// renewal window.
func KeyTx(t testing.TB, keyURI, ckc string) capture.Transaction {
	t.Helper()

	request, err := json.Marshal(map[string]any{"keyUri": keyURI, "challenge": "c2Vzc2lvbg=="})
	if err != nil {
		t.Fatalf("marshal key request: %v", err)
	}
	response, err := json.Marshal(map[string]any{"ckc": ckc, "renew-after": 3600})
	if err != nil {
		t.Fatalf("marshal key response: %v", err)
	}
	return capture.Transaction{
		Method:       "POST",
		URL:          KeyURL,
		RequestBody:  request,
		Status:       200,
		ResponseBody: response,
		Timestamp:    FixtureTime.Add(3 * time.Second),
	}
}

// WithStatus returns a copy of tx carrying a different response status.
func WithStatus(tx capture.Transaction, status int) capture.Transaction {
	tx.Status = status
	return tx
}

// WriteCapture writes txs as a JSON Lines capture file under the test's temp
// directory and returns its path.
func WriteCapture(t testing.TB, name string, txs ...capture.Transaction) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create capture: %v", err)
	}
	defer file.Close()

	writer := capture.NewJSONLWriter(file)
	for _, tx := range txs {
		if err := writer.Write(tx); err != nil {
			t.Fatalf("write capture: %v", err)
		}
	}
	return path
}
