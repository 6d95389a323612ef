package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"capflow/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect archived runs and downloads",
	}

	catalogCmd.AddCommand(newCatalogRunsCommand(ctx))
	catalogCmd.AddCommand(newCatalogListCommand(ctx))

	return catalogCmd
}

func (c *commandContext) withCatalog(fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

type runView struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	KeyPolicy     string    `json:"key_policy"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Transactions  int       `json:"transactions"`
	Completed     int       `json:"completed"`
	Duplicates    int       `json:"duplicates"`
	Stalled       int       `json:"stalled"`
	UnclaimedKeys int       `json:"unclaimed_keys"`
}

type keyView struct {
	URI       string     `json:"uri"`
	CKC       string     `json:"ckc"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type downloadView struct {
	RunID       string    `json:"run_id"`
	SessionID   int64     `json:"session_id"`
	Title       string    `json:"title"`
	PlaylistURL string    `json:"playlist_url"`
	VariantURL  string    `json:"variant_url"`
	CompletedAt time.Time `json:"completed_at"`
	Keys        []keyView `json:"keys"`
}

func newCatalogRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, runView(run))
				}
				if jsonOutput {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No runs archived")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, run := range views {
					rows = append(rows, []string{
						run.ID,
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						run.Source,
						strconv.Itoa(run.Transactions),
						strconv.Itoa(run.Completed),
						strconv.Itoa(run.Stalled),
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{Header: "Run"},
					{Header: "Started"},
					{Header: "Source", MaxWidth: 48},
					{Header: "Transactions", Align: alignRight},
					{Header: "Completed", Align: alignRight},
					{Header: "Stalled", Align: alignRight},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived downloads for a run (latest run by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				id := strings.TrimSpace(runID)
				if id == "" {
					runs, err := store.ListRuns(cmd.Context(), 1)
					if err != nil {
						return err
					}
					if len(runs) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No runs archived")
						return nil
					}
					id = runs[0].ID
				} else {
					run, err := store.GetRun(cmd.Context(), id)
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", id)
					}
				}

				downloads, err := store.ListDownloads(cmd.Context(), id)
				if err != nil {
					return err
				}
				views := make([]downloadView, 0, len(downloads))
				for _, d := range downloads {
					views = append(views, newDownloadView(d))
				}
				if jsonOutput {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s: %d downloads\n", id, len(views))
				if len(views) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, d := range views {
					uris := make([]string, 0, len(d.Keys))
					for _, key := range d.Keys {
						uris = append(uris, key.URI)
					}
					rows = append(rows, []string{
						strconv.FormatInt(d.SessionID, 10),
						d.Title,
						d.VariantURL,
						strings.Join(uris, "\n"),
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{Header: "Session", Align: alignRight},
					{Header: "Title", MaxWidth: 40},
					{Header: "Variant", MaxWidth: 60},
					{Header: "Keys", MaxWidth: 48},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run identifier (defaults to the most recent run)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print downloads as JSON")
	return cmd
}

func newDownloadView(d catalog.Download) downloadView {
	view := downloadView{
		RunID:       d.RunID,
		SessionID:   d.SessionID,
		Title:       d.Title,
		PlaylistURL: d.PlaylistURL,
		VariantURL:  d.VariantURL,
		CompletedAt: d.CompletedAt,
		Keys:        make([]keyView, 0, len(d.Keys)),
	}
	for _, key := range d.Keys {
		kv := keyView{URI: key.URI, CKC: key.CKC}
		if !key.IssuedAt.IsZero() {
			issued := key.IssuedAt
			kv.IssuedAt = &issued
		}
		if !key.ExpiresAt.IsZero() {
			expires := key.ExpiresAt
			kv.ExpiresAt = &expires
		}
		view.Keys = append(view.Keys, kv)
	}
	return view
}
