package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"capflow/internal/capture"
	"capflow/internal/catalog"
	"capflow/internal/config"
	"capflow/internal/correlate"
	"capflow/internal/documents"
	"capflow/internal/logging"
)

type runOutputFlags struct {
	jsonOutput  bool
	export      bool
	manifestDir string
	keyPolicy   string
}

func (f *runOutputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&f.export, "export", false, "Archive the run in the catalog database")
	cmd.Flags().StringVar(&f.manifestDir, "manifest-dir", "", "Write one JSON manifest per completed download (defaults to paths.manifest_dir)")
	cmd.Flags().StringVar(&f.keyPolicy, "key-policy", "", "Override correlation.key_policy (consume or retain)")
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var format string
	var flags runOutputFlags

	cmd := &cobra.Command{
		Use:   "replay <capture>",
		Short: "Correlate a recorded capture file (HAR or JSON Lines)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			source, err := capture.Open(args[0], format)
			if err != nil {
				return err
			}
			defer source.Close()

			runID := uuid.NewString()
			runCtx := logging.WithRunID(cmd.Context(), runID)
			logger = logging.WithContext(runCtx, logger)

			opts, err := engineOptions(cfg, flags.keyPolicy)
			if err != nil {
				return err
			}
			opts = append(opts, correlate.WithLogger(logger), correlate.WithRunID(runID))
			engine := correlate.NewEngine(documents.Codec{}, opts...)

			started := time.Now()
			count, drainErr := correlate.Drain(runCtx, source, engine)
			truncated := false
			switch {
			case drainErr == nil:
			case errors.Is(drainErr, capture.ErrCorrupt):
				truncated = true
				logging.WarnWithImpact(logger, "capture truncated", "corrupt_record",
					logging.String("capture", source.Path),
					logging.Int("transactions", count),
					logging.Error(drainErr),
					logging.String(logging.FieldImpact, "transactions after the corrupt record were not correlated"),
				)
			default:
				return drainErr
			}
			report := engine.Finalize()

			payload := newReportPayload(report, source.Path)
			payload.Truncated = truncated
			if err := finishRun(runCtx, cfg, logger, &payload, report, flags, started); err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd, payload)
			}
			renderReport(cmd.OutOrStdout(), payload, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", capture.FormatAuto, "Capture format: auto, har, or jsonl")
	flags.register(cmd)
	return cmd
}

// finishRun performs the optional outputs shared by replay and serve:
// catalog export and manifest files.
func finishRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, payload *reportPayload, report correlate.Report, flags runOutputFlags, started time.Time) error {
	if flags.export {
		store, err := catalog.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		run, err := store.RecordReport(ctx, report, payload.Source, started, time.Now())
		if err != nil {
			return fmt.Errorf("export run: %w", err)
		}
		payload.CatalogPath = store.Path()
		logger.Info("run archived",
			logging.String("catalog", store.Path()),
			logging.Int("downloads", run.Completed),
		)
	}

	manifestDir := strings.TrimSpace(flags.manifestDir)
	if manifestDir == "" {
		manifestDir = cfg.Paths.ManifestDir
	} else {
		expanded, err := config.ExpandPath(manifestDir)
		if err != nil {
			return fmt.Errorf("resolve manifest directory: %w", err)
		}
		manifestDir = expanded
	}
	if manifestDir != "" && len(payload.Completed) > 0 {
		paths, err := writeManifests(manifestDir, payload.RunID, payload.Completed)
		if err != nil {
			return err
		}
		payload.Manifests = paths
		logger.Info("manifests written",
			logging.String("directory", manifestDir),
			logging.Int("count", len(paths)),
		)
	}
	return nil
}
