package documents

import (
	"encoding/json"
	"strings"
	"time"
)

// Key is decryption material returned by the key-fetch endpoint.
type Key struct {
	URI        string
	CKC        string
	Issued     time.Time
	Expiration time.Time
}

// Expired reports whether the key has a known expiration at or before now.
func (k Key) Expired(now time.Time) bool {
	return !k.Expiration.IsZero() && !now.Before(k.Expiration)
}

type keyRequest struct {
	KeyURI string `json:"keyUri"`
}

type keyResponse struct {
	CKC        string   `json:"ckc"`
	RenewAfter *float64 `json:"renew-after"`
}

// DecodeKey pairs the identifier named in a key-fetch request with the
// material in its response. issued is the transaction timestamp; the
// expiration is issued plus renew-after seconds when the response names one.
func DecodeKey(requestBody, responseBody []byte, issued time.Time) (Key, error) {
	var req keyRequest
	if err := json.Unmarshal(requestBody, &req); err != nil {
		return Key{}, Wrap(ErrFormatInvalid, "key request", "decode json", err)
	}
	uri := strings.TrimSpace(req.KeyURI)
	if uri == "" {
		return Key{}, Wrap(ErrFormatInvalid, "key request", "keyUri missing", nil)
	}

	var resp keyResponse
	if err := json.Unmarshal(responseBody, &resp); err != nil {
		return Key{}, Wrap(ErrFormatInvalid, "key response", "decode json", err)
	}
	if strings.TrimSpace(resp.CKC) == "" {
		return Key{}, Wrap(ErrFormatInvalid, "key response", "ckc missing", nil)
	}

	key := Key{URI: uri, CKC: resp.CKC, Issued: issued}
	if resp.RenewAfter != nil && *resp.RenewAfter > 0 && !issued.IsZero() {
		key.Expiration = issued.Add(time.Duration(*resp.RenewAfter * float64(time.Second)))
	}
	return key, nil
}
