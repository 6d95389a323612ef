package correlate

// Dedupe keeps the first session for each selected variant URL and returns
// the later ones separately. Input order is preserved in both results.
func Dedupe(sessions []*Session) (kept, dropped []*Session) {
	seen := make(map[string]struct{}, len(sessions))
	for _, session := range sessions {
		if session == nil {
			continue
		}
		if _, dup := seen[session.VariantURL]; dup {
			dropped = append(dropped, session)
			continue
		}
		seen[session.VariantURL] = struct{}{}
		kept = append(kept, session)
	}
	return kept, dropped
}
