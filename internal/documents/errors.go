package documents

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormatInvalid marks a payload whose structure does not match the
	// document the transaction was routed as.
	ErrFormatInvalid = errors.New("format invalid")
	// ErrNotVariant marks a media playlist served where a master playlist
	// listing variants was expected.
	ErrNotVariant = fmt.Errorf("%w: not a variant playlist", ErrFormatInvalid)
)

// Wrap builds an error message that names the document being decoded while
// tagging it with marker for errors.Is classification. A nil marker defaults
// to ErrFormatInvalid.
func Wrap(marker error, document, message string, err error) error {
	detail := buildDetail(document, message)
	if marker == nil {
		marker = ErrFormatInvalid
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(document, message string) string {
	parts := make([]string, 0, 2)
	if document = strings.TrimSpace(document); document != "" {
		parts = append(parts, document)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "document"
	}
	return strings.Join(parts, ": ")
}
