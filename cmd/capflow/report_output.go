package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"capflow/internal/correlate"
	"capflow/internal/fileutil"
	"capflow/internal/textutil"
)

type reportPayload struct {
	RunID         string                     `json:"run_id"`
	Source        string                     `json:"source"`
	KeyPolicy     string                     `json:"key_policy"`
	Truncated     bool                       `json:"truncated,omitempty"`
	Completed     []correlate.SessionSummary `json:"completed"`
	Duplicates    []correlate.SessionSummary `json:"duplicates"`
	Stalled       []correlate.SessionSummary `json:"stalled"`
	UnclaimedKeys []string                   `json:"unclaimed_keys"`
	Stats         correlate.Stats            `json:"stats"`
	Manifests     []string                   `json:"manifests,omitempty"`
	CatalogPath   string                     `json:"catalog_path,omitempty"`
}

func newReportPayload(report correlate.Report, source string) reportPayload {
	payload := reportPayload{
		RunID:         report.RunID,
		Source:        source,
		KeyPolicy:     string(report.KeyPolicy),
		Completed:     correlate.Summaries(report.Completed),
		Duplicates:    correlate.Summaries(report.Duplicates),
		Stalled:       correlate.Summaries(report.Stalled),
		UnclaimedKeys: make([]string, 0, len(report.UnclaimedKeys)),
		Stats:         report.Stats,
	}
	for _, key := range report.UnclaimedKeys {
		payload.UnclaimedKeys = append(payload.UnclaimedKeys, key.URI)
	}
	return payload
}

func renderReport(w io.Writer, payload reportPayload, colorize bool) {
	lines := renderSectionHeader("Run "+payload.RunID, colorize)
	stats := payload.Stats
	lines = append(lines,
		renderStatusLine("Source", statusInfo, payload.Source, colorize),
		renderStatusLine("Key policy", statusInfo, payload.KeyPolicy, colorize),
		renderStatusLine("Transactions", statusInfo, fmt.Sprintf("%d seen, %d failed status, %d unrecognized",
			stats.Transactions, stats.SkippedStatus, stats.Unrecognized), colorize),
		renderStatusLine("Decode failures", countStatus(stats.DecodeFailures(), statusWarn), strconv.Itoa(stats.DecodeFailures()), colorize),
		renderStatusLine("Completed", statusOK, fmt.Sprintf("%d (%d duplicates dropped)", len(payload.Completed), len(payload.Duplicates)), colorize),
		renderStatusLine("Stalled", countStatus(len(payload.Stalled), statusWarn), strconv.Itoa(len(payload.Stalled)), colorize),
		renderStatusLine("Unclaimed keys", countStatus(len(payload.UnclaimedKeys), statusInfo), strconv.Itoa(len(payload.UnclaimedKeys)), colorize),
	)
	if payload.Truncated {
		lines = append(lines, renderStatusLine("Capture", statusWarn, "truncated at a corrupt record", colorize))
	}
	if payload.CatalogPath != "" {
		lines = append(lines, renderStatusLine("Catalog", statusOK, payload.CatalogPath, colorize))
	}
	if len(payload.Manifests) > 0 {
		lines = append(lines, renderStatusLine("Manifests", statusOK, strconv.Itoa(len(payload.Manifests))+" written", colorize))
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))

	if len(payload.Completed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Join(renderSectionHeader("Completed downloads", colorize), "\n"))
		fmt.Fprintln(w, renderTable(completedColumns, completedRows(payload.Completed)))
	}
	if len(payload.Stalled) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Join(renderSectionHeader("Stalled sessions", colorize), "\n"))
		fmt.Fprintln(w, renderTable(stalledColumns, stalledRows(payload.Stalled)))
	}
}

var completedColumns = []tableColumn{
	{Header: "ID", Align: alignRight},
	{Header: "Title", MaxWidth: 40},
	{Header: "Variant", MaxWidth: 60},
	{Header: "Keys", Align: alignRight},
}

var stalledColumns = []tableColumn{
	{Header: "ID", Align: alignRight},
	{Header: "Title", MaxWidth: 40},
	{Header: "Stage"},
	{Header: "Missing", MaxWidth: 60},
}

func completedRows(sessions []correlate.SessionSummary) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Title,
			s.VariantURL,
			strconv.Itoa(len(s.Keys)),
		})
	}
	return rows
}

func stalledRows(sessions []correlate.SessionSummary) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		missing := "-"
		if len(s.MissingKeys) > 0 {
			missing = strings.Join(s.MissingKeys, "\n")
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Title,
			s.Stage.Label(),
			missing,
		})
	}
	return rows
}

type downloadManifest struct {
	RunID string `json:"run_id"`
	correlate.SessionSummary
}

// writeManifests writes one JSON manifest per completed download into dir and
// returns the paths written.
func writeManifests(dir, runID string, sessions []correlate.SessionSummary) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}
	paths := make([]string, 0, len(sessions))
	for _, session := range sessions {
		path := filepath.Join(dir, textutil.ManifestFileName(session.Title, session.ID))
		data, err := json.MarshalIndent(downloadManifest{RunID: runID, SessionSummary: session}, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode manifest: %w", err)
		}
		if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
			return paths, fmt.Errorf("write manifest %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
