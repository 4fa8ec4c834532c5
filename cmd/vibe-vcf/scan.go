package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/duckdb"
	"github.com/inodb/vibe-vcf/internal/output"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

func newScanCmd() *cobra.Command {
	var (
		format     string
		outputFile string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "scan <file.vcf[.gz]>",
		Short: "Convert a whole VCF file to features without an index",
		Long: `Scan reads a plain, gzip or BGZF VCF file from start to end and prints every
record as a feature, or writes them to a DuckDB database with --db. Use "-" to
read stdin. No index or remote access is involved.`,
		Example: `  vibe-vcf scan sample.vcf.gz
  zcat sample.vcf.gz | vibe-vcf scan -f jsonl -
  vibe-vcf scan --db features.duckdb sample.vcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			parser, err := vcf.NewParser(args[0])
			if err != nil {
				return err
			}
			defer parser.Close()

			if dbPath != "" {
				return scanToDB(cmd, logger, parser, args[0], dbPath)
			}

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
			return scanToWriter(logger, parser, w)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "tab", "Output format: tab, jsonl")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Write features to this DuckDB database instead")

	return cmd
}

// scanFeatures calls fn with the feature of every record in parser.
func scanFeatures(parser *vcf.Parser, fn func(*vcf.Feature) error) (int, error) {
	var n int
	for {
		rec, err := parser.Next()
		if err != nil {
			return n, err
		}
		if rec == nil {
			return n, nil
		}
		if err := fn(vcf.BuildFeature(rec)); err != nil {
			return n, err
		}
		n++
	}
}

func scanToWriter(logger *zap.Logger, parser *vcf.Parser, w output.Writer) error {
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	n, err := scanFeatures(parser, w.Write)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	logger.Info("scan complete", zap.Int("features", n))
	return nil
}

func scanToDB(cmd *cobra.Command, logger *zap.Logger, parser *vcf.Parser, path, dbPath string) error {
	db, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var written int64
	batch := make([]*vcf.Feature, 0, exportBatch)
	flush := func() error {
		n, err := db.WriteFeatures(batch)
		written += int64(n)
		batch = batch[:0]
		return err
	}

	_, err = scanFeatures(parser, func(f *vcf.Feature) error {
		batch = append(batch, f)
		if len(batch) == exportBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	if err := db.RecordExport(duckdb.Export{URL: path, Size: size, Features: written}); err != nil {
		return err
	}

	logger.Info("scan complete", zap.Int64("features", written))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d features to %s\n", written, dbPath)
	return nil
}
