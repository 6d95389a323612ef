package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"capflow/internal/config"
	"capflow/internal/correlate"
	"capflow/internal/documents"
	"capflow/internal/ingest"
	"capflow/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var recordPath string
	var flags runOutputFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept live transactions over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			runCtx := logging.WithRunID(cmd.Context(), runID)
			logger = logging.WithContext(runCtx, logger)

			opts, err := engineOptions(cfg, flags.keyPolicy)
			if err != nil {
				return err
			}
			opts = append(opts, correlate.WithLogger(logger), correlate.WithRunID(runID))
			engine := correlate.NewEngine(documents.Codec{}, opts...)

			serverOpts := []ingest.Option{ingest.WithLogger(logger)}
			if recordPath != "" {
				path, err := config.ExpandPath(recordPath)
				if err != nil {
					return fmt.Errorf("resolve record path: %w", err)
				}
				file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open record file: %w", err)
				}
				defer file.Close()
				serverOpts = append(serverOpts, ingest.WithRecorder(file))
			}

			server, err := ingest.New(cfg, engine, serverOpts...)
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			started := time.Now()
			if err := server.Run(signalCtx); err != nil {
				return err
			}
			report := server.Finalize()

			payload := newReportPayload(report, "serve:"+cfg.Ingest.Bind)
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

	cmd.Flags().StringVar(&recordPath, "record", "", "Append every accepted transaction to this JSON Lines file")
	flags.register(cmd)
	return cmd
}
