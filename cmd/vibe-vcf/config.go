package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindFloat
	kindDuration
	kindSecret
)

// configKeys are the settings read from ~/.vibe-vcf.yaml.
var configKeys = map[string]keyKind{
	"url_template":       kindString,
	"tbi_url_template":   kindString,
	"refseq":             kindString,
	"verbose":            kindBool,
	"workers":            kindInt,
	"stats.timeout":      kindDuration,
	"stats.max_refseqs":  kindInt,
	"cache.entries":      kindInt,
	"cache.max_bytes":    kindInt,
	"s3.region":          kindString,
	"s3.endpoint":        kindString,
	"minio.endpoint":     kindString,
	"minio.access_key":   kindString,
	"minio.secret_key":   kindSecret,
	"minio.secure":       kindBool,
	"http.rate_limit":    kindFloat,
	"serve.addr":         kindString,
	"serve.max_features": kindInt,
}

// bindFlag binds a flag to a viper key so config file and VIBE_VCF_* environment
// values apply when the flag is not given.
func bindFlag(f *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}

func newConfigCmd() *cobra.Command {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-vcf configuration",
		Long: "Show, get, or set configuration values. Config is stored in ~/.vibe-vcf.yaml.\n\nKeys:\n  " +
			strings.Join(keys, "\n  "),
		Example: `  vibe-vcf config                                   # show all config
  vibe-vcf config set url_template 's3://bucket/{refseq}.vcf.gz'
  vibe-vcf config set stats.timeout 5s
  vibe-vcf config get minio.endpoint`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

// parseConfigValue converts value to the type stored for key.
func parseConfigValue(key, value string) (any, error) {
	kind, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown config key %q (see vibe-vcf config --help)", errUsage, key)
	}

	var (
		v   any
		err error
	)
	switch kind {
	case kindBool:
		switch value {
		case "yes", "on":
			v = true
		case "no", "off":
			v = false
		default:
			v, err = strconv.ParseBool(value)
		}
	case kindInt:
		var n int64
		n, err = strconv.ParseInt(value, 10, 64)
		if err == nil && n < 0 {
			err = errors.New("must not be negative")
		}
		v = n
	case kindFloat:
		v, err = strconv.ParseFloat(value, 64)
	case kindDuration:
		// Stored as text so the file stays readable; viper parses it back.
		var d time.Duration
		d, err = time.ParseDuration(value)
		v = d.String()
	default:
		v = value
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bad value %q for %s: %v", errUsage, value, key, err)
	}
	return v, nil
}

func runConfigShow(cmd *cobra.Command) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "# No configuration set. Config file: ~/.vibe-vcf.yaml")
		return nil
	}
	if minio, ok := settings["minio"].(map[string]any); ok && minio["secret_key"] != nil && minio["secret_key"] != "" {
		minio["secret_key"] = "********"
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	v, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}
	viper.Set(key, v)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".vibe-vcf.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if configKeys[key] == kindSecret {
		v = "********"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, v, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
