package capture

import (
	"errors"
	"io"
	"time"
)

// ErrCorrupt marks a capture record that could not be decoded. Readers return
// it wrapped with the record position; callers treat the capture as truncated.
var ErrCorrupt = errors.New("corrupt capture record")

// Transaction is one observed request paired with its response.
type Transaction struct {
	Method       string
	URL          string
	RequestBody  []byte
	Status       int
	ResponseBody []byte
	Timestamp    time.Time
}

// StatusRange reports whether a response status counts as success.
type StatusRange struct {
	Min int
	Max int
}

// DefaultStatusRange accepts any 2xx response.
var DefaultStatusRange = StatusRange{Min: 200, Max: 299}

// Contains reports whether status lies inside the range.
func (r StatusRange) Contains(status int) bool {
	return status >= r.Min && status <= r.Max
}

// Reader yields transactions in arrival order. Next returns io.EOF once the
// source is exhausted.
type Reader interface {
	Next() (Transaction, error)
}

// SliceReader replays an in-memory list of transactions.
type SliceReader struct {
	items []Transaction
	pos   int
}

// NewSliceReader returns a Reader over txs.
func NewSliceReader(txs ...Transaction) *SliceReader {
	return &SliceReader{items: txs}
}

// Next returns the next transaction or io.EOF.
func (r *SliceReader) Next() (Transaction, error) {
	if r.pos >= len(r.items) {
		return Transaction{}, io.EOF
	}
	tx := r.items[r.pos]
	r.pos++
	return tx, nil
}
