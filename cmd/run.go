/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/scenetran/internal/config"
	"github.com/valpere/scenetran/internal/orchestrator"
	"github.com/valpere/scenetran/internal/pretranslate"
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/store"
)

var (
	configPath string
	verbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the translation pipeline",
	Long: `Execute the configured phase sequence against a script directory.

Every distinct endpoint is probed with one live request before any phase
runs, and each phase output is persisted before the next phase starts, so
an interrupted run keeps everything already completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger, err := buildLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer logger.Sync()

		db, err := store.New(cfg.DBPath)
		if err != nil {
			return run.Wrap(run.KindPersistence, "", err, "open database")
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch := orchestrator.New(cfg, orchestrator.Options{
			Store:         db,
			Pretranslator: pretranslate.NewGoogle(cfg.Google.CredentialsFile),
			Sink:          run.NewZapSink(logger),
		})

		if err := orch.Run(ctx); err != nil {
			return err
		}

		fmt.Printf("Run %s completed: %d units, output in %s\n",
			orch.Context().ID, len(orch.Context().Units()), cfg.OutputDir)
		return nil
	},
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&configPath, "config", "c", "scenetran.yaml", "Path to configuration file")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (development) logging")
}
