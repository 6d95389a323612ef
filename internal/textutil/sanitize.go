package textutil

import (
	"fmt"
	"strings"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// maxFileNameStem bounds the title part of generated names, in runes.
const maxFileNameStem = 120

// SanitizeFileName normalizes name and replaces filesystem-unsafe characters.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. Leading dots are dropped so names never hide.
func SanitizeFileName(name string) string {
	name = NormalizeTitle(name)
	if name == "" {
		return ""
	}
	name = fileNameReplacer.Replace(name)
	name = strings.TrimLeft(name, ".")
	runes := []rune(name)
	if len(runes) > maxFileNameStem {
		name = string(runes[:maxFileNameStem])
	}
	return strings.TrimSpace(name)
}

// ManifestFileName builds "<title>-<id>.json" for a download manifest. Titles
// that sanitize to nothing become "untitled".
func ManifestFileName(title string, id int64) string {
	stem := SanitizeFileName(title)
	if stem == "" || stem == "(Unknown)" {
		stem = "untitled"
	}
	return fmt.Sprintf("%s-%d.json", stem, id)
}
