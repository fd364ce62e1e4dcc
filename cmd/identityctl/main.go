// Command identityctl is the operator tool for the identity engine: key and
// hash generation, the Postgres schema, an end-to-end demo and a load test.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globals struct {
	configFile string
	envFile    string
	envPrefix  string
	jsonOut    bool
	verbose    bool

	logger *zap.Logger
	out    io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globals{out: out}

	root := &cobra.Command{
		Use:           "identityctl",
		Short:         "Operator tooling for the identity engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.loadEnvFile(cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			logger, err := newLogger(g.verbose)
			if err != nil {
				return err
			}
			g.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "YAML config file; environment variables override it")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&g.envPrefix, "env-prefix", "IDENTITY_", "prefix of configuration environment variables")
	pf.BoolVar(&g.jsonOut, "json", false, "print results as JSON")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newKeygenCmd(g),
		newHashPasswordCmd(g),
		newSchemaCmd(g),
		newDemoCmd(g),
		newLoadtestCmd(g),
		newReportCmd(g),
	)
	return root
}

// loadEnvFile loads the dotenv file. A missing default file is fine; a
// missing file the user asked for is not.
func (g *globals) loadEnvFile(explicit bool) error {
	if g.envFile == "" {
		return nil
	}
	err := godotenv.Load(g.envFile)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("load %s: %w", g.envFile, err)
}

func (g *globals) config() (goIdentity.Config, error) {
	if g.configFile == "" {
		return goIdentity.LoadConfigFromEnv(g.envPrefix)
	}
	cfg, err := goIdentity.LoadConfigFile(g.configFile)
	if err != nil {
		return goIdentity.Config{}, err
	}
	if err := goIdentity.OverlayEnv(&cfg, g.envPrefix); err != nil {
		return goIdentity.Config{}, err
	}
	return cfg, nil
}

// emit prints v as indented JSON with --json, and text otherwise.
func (g *globals) emit(v any, text string) error {
	if g.jsonOut {
		enc := json.NewEncoder(g.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(g.out, text)
	return err
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
