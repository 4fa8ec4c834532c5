package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-vcf/internal/store"
)

// storeCommand builds a subcommand that opens the store and prints the JSON
// value produced by get.
func storeCommand(use, short string, get func(context.Context, *store.Store) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			s, err := openStore(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := get(cmd.Context(), s)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}

func newRefSeqsCmd() *cobra.Command {
	return storeCommand("refseqs", "List the reference sequences in the index",
		func(ctx context.Context, s *store.Store) (any, error) {
			return s.RefSeqs(ctx)
		})
}

func newHeaderCmd() *cobra.Command {
	return storeCommand("header", "Print the parsed VCF header as JSON",
		func(ctx context.Context, s *store.Store) (any, error) {
			return s.Header(ctx)
		})
}

func newStatsCmd() *cobra.Command {
	return storeCommand("stats", "Estimate feature density by sampling",
		func(ctx context.Context, s *store.Store) (any, error) {
			return s.Stats(ctx)
		})
}
