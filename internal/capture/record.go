package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// BodyEncodingBase64 marks record bodies that are base64 encoded.
const BodyEncodingBase64 = "base64"

// Record is the JSON shape of one transaction in JSON Lines captures and in
// the ingest API.
type Record struct {
	Method       string    `json:"method,omitempty"`
	URL          string    `json:"url"`
	RequestBody  string    `json:"request_body,omitempty"`
	Status       int       `json:"status"`
	ResponseBody string    `json:"response_body,omitempty"`
	BodyEncoding string    `json:"body_encoding,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Transaction converts the record, decoding bodies when needed.
func (r Record) Transaction() (Transaction, error) {
	if strings.TrimSpace(r.URL) == "" {
		return Transaction{}, errors.New("record url is empty")
	}
	if r.Status <= 0 {
		return Transaction{}, fmt.Errorf("record %s has no response status", r.URL)
	}
	reqBody, err := decodeBody(r.RequestBody, r.BodyEncoding)
	if err != nil {
		return Transaction{}, fmt.Errorf("request body: %w", err)
	}
	respBody, err := decodeBody(r.ResponseBody, r.BodyEncoding)
	if err != nil {
		return Transaction{}, fmt.Errorf("response body: %w", err)
	}
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = "GET"
	}
	return Transaction{
		Method:       method,
		URL:          r.URL,
		RequestBody:  reqBody,
		Status:       r.Status,
		ResponseBody: respBody,
		Timestamp:    r.Timestamp,
	}, nil
}

// NewRecord builds the wire form of tx. Bodies are written as text unless
// either one is not valid UTF-8, in which case both are base64 encoded.
func NewRecord(tx Transaction) Record {
	rec := Record{
		Method:       tx.Method,
		URL:          tx.URL,
		RequestBody:  string(tx.RequestBody),
		Status:       tx.Status,
		ResponseBody: string(tx.ResponseBody),
		Timestamp:    tx.Timestamp,
	}
	if !utf8.Valid(tx.RequestBody) || !utf8.Valid(tx.ResponseBody) {
		rec.RequestBody = base64.StdEncoding.EncodeToString(tx.RequestBody)
		rec.ResponseBody = base64.StdEncoding.EncodeToString(tx.ResponseBody)
		rec.BodyEncoding = BodyEncodingBase64
	}
	return rec
}

func decodeBody(body, encoding string) ([]byte, error) {
	if body == "" {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "":
		return []byte(body), nil
	case BodyEncodingBase64:
		return base64.StdEncoding.DecodeString(body)
	default:
		return nil, fmt.Errorf("unsupported body encoding %q", encoding)
	}
}
