package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/duckdb"
	"github.com/inodb/vibe-vcf/internal/store"
	"github.com/inodb/vibe-vcf/internal/tabix"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// exportBatch is the number of features buffered per DuckDB append.
const exportBatch = 10000

func newExportCmd() *cobra.Command {
	var (
		dbPath     string
		clearFirst bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy every feature into a DuckDB database",
		Long: `Export reads every reference sequence listed in the index and writes its
features to the features table of a DuckDB database. Features already stored
under the same ID are skipped. Each run is logged in the exports table.`,
		Example: `  vibe-vcf export --url data.vcf.gz --db features.duckdb`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("%w: --db is required", errUsage)
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			db, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if clearFirst {
				if err := db.ClearFeatures(); err != nil {
					return fmt.Errorf("clearing features: %w", err)
				}
			}

			return runExport(cmd, logger, db)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB database file")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "Remove stored features before exporting")

	return cmd
}

func runExport(cmd *cobra.Command, logger *zap.Logger, db *duckdb.Store) error {
	ctx := cmd.Context()
	s, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	refs, err := s.RefSeqs(ctx)
	if err != nil {
		return err
	}

	began := time.Now()
	var total int64
	batch := make([]*vcf.Feature, 0, exportBatch)
	flush := func() error {
		n, err := db.WriteFeatures(batch)
		if err != nil {
			return err
		}
		total += int64(n)
		batch = batch[:0]
		return nil
	}

	for _, ref := range refs {
		q := store.Query{SeqID: ref.Name, Start: 0, End: tabix.MaxPosition}
		err := s.Features(ctx, q, func(f *vcf.Feature) error {
			batch = append(batch, f)
			if len(batch) == exportBatch {
				return flush()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("export %s: %w", ref.Name, err)
		}
		logger.Debug("exported reference", zap.String("seq", ref.Name), zap.Int64("total", total))
	}
	if err := flush(); err != nil {
		return err
	}

	size, err := s.DataSize(ctx)
	if err != nil {
		return err
	}
	cfg := s.Config()
	if err := db.RecordExport(duckdb.Export{
		URL:      cfg.URLTemplate,
		Size:     size,
		Features: total,
	}); err != nil {
		return err
	}

	logger.Info("export complete",
		zap.Int("refseqs", len(refs)),
		zap.Int64("features", total),
		zap.Duration("elapsed", time.Since(began)))
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d features from %d reference sequences\n", total, len(refs))
	return nil
}
