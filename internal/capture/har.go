package capture

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type harFile struct {
	Log struct {
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harEntry struct {
	StartedDateTime time.Time `json:"startedDateTime"`
	Request         struct {
		Method   string `json:"method"`
		URL      string `json:"url"`
		PostData *struct {
			Text string `json:"text"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Status  int `json:"status"`
		Content struct {
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

// HARReader replays the entries of an HTTP Archive (HAR 1.2) document in file
// order. Entries without a response are skipped.
type HARReader struct {
	entries []harEntry
	pos     int
}

// NewHARReader decodes the whole archive from r.
func NewHARReader(r io.Reader) (*HARReader, error) {
	var doc harFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: har document: %v", ErrCorrupt, err)
	}
	return &HARReader{entries: doc.Log.Entries}, nil
}

// Next returns the next entry that carries a response, or io.EOF.
func (h *HARReader) Next() (Transaction, error) {
	for h.pos < len(h.entries) {
		entry := h.entries[h.pos]
		h.pos++
		if entry.Response.Status <= 0 {
			continue
		}
		return entry.transaction(h.pos)
	}
	return Transaction{}, io.EOF
}

func (e harEntry) transaction(index int) (Transaction, error) {
	tx := Transaction{
		Method:    strings.ToUpper(e.Request.Method),
		URL:       e.Request.URL,
		Status:    e.Response.Status,
		Timestamp: e.StartedDateTime,
	}
	if e.Request.PostData != nil && e.Request.PostData.Text != "" {
		tx.RequestBody = []byte(e.Request.PostData.Text)
	}
	if text := e.Response.Content.Text; text != "" {
		if strings.EqualFold(e.Response.Content.Encoding, BodyEncodingBase64) {
			decoded, err := base64.StdEncoding.DecodeString(text)
			if err != nil {
				return Transaction{}, fmt.Errorf("%w: har entry %d: response content: %v", ErrCorrupt, index, err)
			}
			tx.ResponseBody = decoded
		} else {
			tx.ResponseBody = []byte(text)
		}
	}
	return tx, nil
}
