// Package main provides the vibe-vcf command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/blob"
	"github.com/inodb/vibe-vcf/internal/store"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errUsage = errors.New("usage error")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "vibe-vcf",
		Short: "Query tabix-indexed VCF files",
		Long: `vibe-vcf reads variants from BGZF-compressed, tabix-indexed VCF files on local
disk, HTTP, Google Cloud Storage, S3 or MinIO, and returns them as typed features
with half-open 0-based coordinates and a classified variant type.`,
		Example: `  vibe-vcf query --url data.vcf.gz 12:25245000-25246000
  vibe-vcf query --url 's3://bucket/{refseq}.vcf.gz' --refseq 12 12
  vibe-vcf refseqs --url https://example.org/data.vcf.gz
  vibe-vcf serve --url gs://bucket/data.vcf.gz --addr :8080`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-vcf.yaml)")
	flags.String("url", "", "Data file URL or path; {refseq} is replaced by --refseq")
	flags.String("tbi-url", "", "Index URL (default: data URL + .tbi)")
	flags.String("refseq", "", "Reference sequence for {refseq} and for queries without one")
	flags.BoolP("verbose", "v", false, "Verbose logging")
	bindFlag(flags.Lookup("url"), "url_template")
	bindFlag(flags.Lookup("tbi-url"), "tbi_url_template")
	bindFlag(flags.Lookup("refseq"), "refseq")
	bindFlag(flags.Lookup("verbose"), "verbose")

	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newRefSeqsCmd())
	cmd.AddCommand(newHeaderCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig(cfgFile string) error {
	viper.SetDefault("stats.timeout", "3s")
	viper.SetDefault("stats.max_refseqs", 1)
	viper.SetDefault("serve.addr", ":8080")
	viper.SetEnvPrefix("VIBE_VCF")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.SetConfigFile(filepath.Join(home, ".vibe-vcf.yaml"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// storeConfig builds a store.Config from flags, environment and config file.
func storeConfig() (store.Config, error) {
	cfg := store.Config{
		URLTemplate:    viper.GetString("url_template"),
		TBIURLTemplate: viper.GetString("tbi_url_template"),
		RefSeq:         viper.GetString("refseq"),
		StatsTimeout:   viper.GetDuration("stats.timeout"),
		MaxRefSeqs:     viper.GetInt("stats.max_refseqs"),
		Workers:        viper.GetInt("workers"),
		CacheEntries:   viper.GetInt("cache.entries"),
		CacheBytes:     viper.GetInt64("cache.max_bytes"),
		Blob: blob.Options{
			S3Region:       viper.GetString("s3.region"),
			S3Endpoint:     viper.GetString("s3.endpoint"),
			MinioEndpoint:  viper.GetString("minio.endpoint"),
			MinioAccessKey: viper.GetString("minio.access_key"),
			MinioSecretKey: viper.GetString("minio.secret_key"),
			MinioSecure:    viper.GetBool("minio.secure"),
			HTTPRateLimit:  viper.GetFloat64("http.rate_limit"),
		},
	}
	if cfg.URLTemplate == "" {
		return cfg, fmt.Errorf("%w: --url is required (or set url_template with vibe-vcf config set)", errUsage)
	}
	return cfg, nil
}

// openStore opens the configured store. The caller closes it.
func openStore(ctx context.Context, logger *zap.Logger, opts ...store.Option) (*store.Store, error) {
	cfg, err := storeConfig()
	if err != nil {
		return nil, err
	}
	opts = append([]store.Option{store.WithLogger(logger)}, opts...)

	began := time.Now()
	s, err := store.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opening", zap.String("url", cfg.URLTemplate), zap.Duration("elapsed", time.Since(began)))
	return s, nil
}
