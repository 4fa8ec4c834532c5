package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/output"
	"github.com/inodb/vibe-vcf/internal/store"
)

func newQueryCmd() *cobra.Command {
	var (
		format     string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "query [region...]",
		Short: "Print the features overlapping one or more regions",
		Long: `Query prints the features overlapping each region. Regions are "seq",
"seq:pos" or "seq:start-end" with 1-based inclusive positions. Without a
region the whole of --refseq is printed. Features are printed once even when
regions overlap.`,
		Example: `  vibe-vcf query --url data.vcf.gz 12:25245000-25246000 7:140753336
  vibe-vcf query --url data.vcf.gz -f jsonl -o kras.jsonl 12:25245351`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{""}
			}
			queries := make([]store.Query, len(args))
			for i, arg := range args {
				q, err := parseRegion(arg)
				if err != nil {
					return err
				}
				queries[i] = q
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			var out io.Writer = cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			w, err := output.New(format, out)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}

			return runQuery(cmd, logger, queries, w)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "tab", "Output format: tab, jsonl")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Int("workers", 0, "Concurrent region queries (0 = all CPUs)")
	bindFlag(cmd.Flags().Lookup("workers"), "workers")

	return cmd
}

func runQuery(cmd *cobra.Command, logger *zap.Logger, queries []store.Query, w output.Writer) error {
	ctx := cmd.Context()
	s, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	began := time.Now()
	seen := make(map[string]bool)
	var written int
	results := s.ParallelQuery(ctx, store.QueryItems(queries), viper.GetInt("workers"))
	err = store.OrderedCollect(results, func(r store.WorkResult) error {
		if r.Err != nil {
			return fmt.Errorf("query %s:%d-%d: %w", r.Query.SeqID, r.Query.Start, r.Query.End, r.Err)
		}
		for _, f := range r.Features {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			if err := w.Write(f); err != nil {
				return fmt.Errorf("writing feature: %w", err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}

	logger.Info("query complete",
		zap.Int("regions", len(queries)),
		zap.Int("features", written),
		zap.Duration("elapsed", time.Since(began)))
	return nil
}
