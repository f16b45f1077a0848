package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"inventory/application/migration"
	"inventory/application/ports"
	"inventory/domain/viewxml"
	"inventory/infrastructure/config"
	"inventory/infrastructure/di"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	fixtures string
	store    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Migrate saved views from numeric ids to object UUIDs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.fixtures, "fixtures", "", "YAML inventory snapshot for the memory store")
	root.PersistentFlags().StringVar(&opts.store, "store", "", "store backend (memory or dynamodb); defaults to configuration")

	root.SetOut(out)
	root.AddCommand(newRunCmd(opts), newScanCmd(opts))
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rewrite every legacy view document and print the report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := opts.container(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Logger.Sync()

			report, runErr := container.Migrator.Run(cmd.Context(), migration.Options{DryRun: dryRun})
			if report != nil {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			}
			if runErr != nil {
				container.Logger.Error("Migration failed", zap.Error(runErr))
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the report without writing")
	return cmd
}

// ScanSummary counts stored view documents by format version
type ScanSummary struct {
	Documents int            `json:"documents"`
	ByVersion map[string]int `json:"byVersion"`
	Malformed []string       `json:"malformed,omitempty"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Count stored view documents by format version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := opts.container(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Logger.Sync()

			summary := ScanSummary{ByVersion: map[string]int{}}
			err = container.Inventory.ScanViewDocuments(cmd.Context(), func(doc ports.StoredDocument) error {
				summary.Documents++
				version, err := viewxml.DetectVersion(doc.Structure)
				if err != nil {
					summary.Malformed = append(summary.Malformed, doc.ViewID)
					return nil
				}
				summary.ByVersion[version]++
				return nil
			})
			if err != nil {
				return err
			}
			sort.Strings(summary.Malformed)
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func (o *rootOptions) container(ctx context.Context) (*di.Container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.store != "" {
		cfg.Store = o.store
	}
	if o.fixtures != "" {
		cfg.FixturesFile = o.fixtures
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return di.InitializeContainer(ctx, cfg)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
