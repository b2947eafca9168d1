// Command digestd is a reverse proxy that verifies or computes the HTTP
// Digest header of inbound requests and signs the requests it forwards.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vitalvas/httpdigest/digest"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("digestd failed")
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "digestd",
		Short:         "HTTP Digest header verifying and signing proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCmd(), newHashCmd(), newAlgorithmsCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	var configPath string

	overrides := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := DefaultConfig()

			if configPath != "" {
				var err error
				if cfg, err = LoadConfig(configPath); err != nil {
					return err
				}
			}

			applyFlags(cmd.Flags(), &cfg, overrides)

			logger, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			srv, err := newServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	flags.StringVar(&overrides.Listen, "listen", overrides.Listen, "address to listen on")
	flags.StringVar(&overrides.Upstream, "upstream", overrides.Upstream, "upstream base URL")
	flags.StringVar(&overrides.Mode, "mode", overrides.Mode, "inbound stage: verify or sign")
	flags.StringSliceVar(&overrides.Algorithms, "algorithm", overrides.Algorithms, "digest algorithm used for signing, repeatable")
	flags.BoolVar(&overrides.Overwrite, "overwrite", overrides.Overwrite, "replace Digest headers that are already present")
	flags.IntVar(&overrides.QueueSize, "queue-size", overrides.QueueSize, "guard queue capacity")
	flags.BoolVar(&overrides.Legacy, "legacy", overrides.Legacy, "enable adler32, md5 and sha")
	flags.Int64Var(&overrides.MaxBodyBytes, "max-body-bytes", overrides.MaxBodyBytes, "request body limit, 0 for none")
	flags.StringVar(&overrides.LogLevel, "log-level", overrides.LogLevel, "log level")

	return cmd
}

// applyFlags copies explicitly set flags from overrides into cfg, so that
// flags win over the configuration file only when given.
func applyFlags(flags *pflag.FlagSet, cfg *Config, overrides Config) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = overrides.Listen
		case "upstream":
			cfg.Upstream = overrides.Upstream
		case "mode":
			cfg.Mode = overrides.Mode
		case "algorithm":
			cfg.Algorithms = overrides.Algorithms
		case "overwrite":
			cfg.Overwrite = overrides.Overwrite
		case "queue-size":
			cfg.QueueSize = overrides.QueueSize
		case "legacy":
			cfg.Legacy = overrides.Legacy
		case "max-body-bytes":
			cfg.MaxBodyBytes = overrides.MaxBodyBytes
		case "log-level":
			cfg.LogLevel = overrides.LogLevel
		}
	})
}

func newHashCmd() *cobra.Command {
	var (
		names  []string
		legacy bool
	)

	cmd := &cobra.Command{
		Use:   "hash [FILE]...",
		Short: "print the Digest header value of files, or of stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := digest.NewRegistry(digest.RegistryConfig{Legacy: legacy})

			algs, err := registry.ParseAlgorithms(names)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}

				return printHeader(cmd.OutOrStdout(), "", data, algs)
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				if err := printHeader(cmd.OutOrStdout(), path, data, algs); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&names, "algorithm", "a", []string{"sha-256"}, "digest algorithm, repeatable")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "enable adler32, md5 and sha")

	return cmd
}

func printHeader(w io.Writer, name string, data []byte, algs []digest.Algorithm) error {
	value, err := digest.ComputeHeader(data, algs)
	if err != nil {
		return err
	}

	if name == "" {
		_, err = fmt.Fprintln(w, value)
	} else {
		_, err = fmt.Fprintf(w, "%s: %s\n", name, value)
	}

	return err
}

func newAlgorithmsCmd() *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "algorithms",
		Short: "list the enabled digest algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := digest.NewRegistry(digest.RegistryConfig{Legacy: legacy})

			for _, alg := range registry.Algorithms() {
				suffix := ""
				if alg.Legacy() {
					suffix = " (legacy)"
				}

				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", alg, suffix); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy", false, "include adler32, md5 and sha")

	return cmd
}

func newLogger(level string, out io.Writer) (log.FieldLogger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	return logger.WithField("app", "digestd"), nil
}
