// Package documents decodes the payloads exchanged during a download: the
// plist dispatch response, the HLS master playlist, the selected HLS media
// playlist, and the JSON key-fetch exchange.
//
// Every decoder reports structural problems as ErrFormatInvalid (or the more
// specific ErrNotVariant) so callers can classify failures with errors.Is
// without inspecting messages. Decoders never panic on malformed input.
package documents
