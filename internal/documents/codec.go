package documents

import "time"

// Codec bundles the package decoders behind one value so the correlation
// engine can take them as a single dependency.
type Codec struct{}

// DecodeDispatch implements the engine decoder contract.
func (Codec) DecodeDispatch(body []byte) (Dispatch, error) {
	return DecodeDispatch(body)
}

// DecodePlaylist implements the engine decoder contract.
func (Codec) DecodePlaylist(playlistURL string, body []byte) (Playlist, error) {
	return DecodePlaylist(playlistURL, body)
}

// DecodeVariant implements the engine decoder contract.
func (Codec) DecodeVariant(body []byte) (Variant, error) {
	return DecodeVariant(body)
}

// DecodeKey implements the engine decoder contract.
func (Codec) DecodeKey(requestBody, responseBody []byte, issued time.Time) (Key, error) {
	return DecodeKey(requestBody, responseBody, issued)
}
