package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSONLReader reads one Record per line. Blank lines are ignored.
type JSONLReader struct {
	reader *bufio.Reader
	line   int
}

// NewJSONLReader wraps r.
func NewJSONLReader(r io.Reader) *JSONLReader {
	return &JSONLReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next decodes the next non-blank line.
func (j *JSONLReader) Next() (Transaction, error) {
	for {
		raw, err := j.reader.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return Transaction{}, io.EOF
			}
			return Transaction{}, fmt.Errorf("read capture: %w", err)
		}
		j.line++
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			if err != nil {
				return Transaction{}, io.EOF
			}
			continue
		}

		var rec Record
		if decodeErr := json.Unmarshal(raw, &rec); decodeErr != nil {
			return Transaction{}, fmt.Errorf("%w: line %d: %v", ErrCorrupt, j.line, decodeErr)
		}
		tx, convErr := rec.Transaction()
		if convErr != nil {
			return Transaction{}, fmt.Errorf("%w: line %d: %v", ErrCorrupt, j.line, convErr)
		}
		return tx, nil
	}
}

// JSONLWriter appends transactions as JSON Lines records.
type JSONLWriter struct {
	enc *json.Encoder
}

// NewJSONLWriter writes records to w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{enc: json.NewEncoder(w)}
}

// Write encodes tx as one line.
func (j *JSONLWriter) Write(tx Transaction) error {
	return j.enc.Encode(NewRecord(tx))
}
