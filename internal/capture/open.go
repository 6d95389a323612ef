package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Capture file formats understood by Open.
const (
	FormatAuto  = "auto"
	FormatHAR   = "har"
	FormatJSONL = "jsonl"
)

// File is a Reader backed by an open capture file.
type File struct {
	Reader
	closer io.Closer
	Format string
	Path   string
}

// Close releases the underlying file.
func (f *File) Close() error {
	if f == nil || f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Open opens a capture file. With FormatAuto (or an empty format) the format
// is chosen from the file extension.
func Open(path, format string) (*File, error) {
	resolved, err := ResolveFormat(path, format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	var reader Reader
	switch resolved {
	case FormatHAR:
		har, err := NewHARReader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		reader = har
	case FormatJSONL:
		reader = NewJSONLReader(file)
	}

	return &File{Reader: reader, closer: file, Format: resolved, Path: path}, nil
}

// ResolveFormat normalizes an explicit format or infers one from path.
func ResolveFormat(path, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatAuto:
	case FormatHAR:
		return FormatHAR, nil
	case FormatJSONL, "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("capture format: unsupported value %q", format)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".har":
		return FormatHAR, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("capture format: cannot infer from %q (use --format har|jsonl)", filepath.Base(path))
	}
}
