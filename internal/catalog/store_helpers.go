package catalog

import (
	"database/sql"
	"strings"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run         Run
		source      sql.NullString
		startedRaw  string
		finishedRaw string
	)
	if err := row.Scan(
		&run.ID,
		&source,
		&run.KeyPolicy,
		&startedRaw,
		&finishedRaw,
		&run.Transactions,
		&run.Completed,
		&run.Duplicates,
		&run.Stalled,
		&run.UnclaimedKeys,
	); err != nil {
		return Run{}, err
	}
	run.Source = source.String
	run.StartedAt = parseTime(sql.NullString{String: startedRaw, Valid: true})
	run.FinishedAt = parseTime(sql.NullString{String: finishedRaw, Valid: true})
	return run, nil
}

func scanDownload(row scanner) (Download, error) {
	var (
		download     Download
		title        sql.NullString
		createdRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := row.Scan(
		&download.ID,
		&download.RunID,
		&download.SessionID,
		&title,
		&download.PlaylistURL,
		&download.VariantURL,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return Download{}, err
	}
	download.Title = title.String
	download.CreatedAt = parseTime(createdRaw)
	download.CompletedAt = parseTime(completedRaw)
	return download, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
