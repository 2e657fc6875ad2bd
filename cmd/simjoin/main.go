// Command simjoin runs similarity joins and evaluations from the command
// line, against PostgreSQL or against local CSV files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/logger"
)

type cli struct {
	configPath string
	csvMode    bool
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "simjoin",
		Short: "Set-similarity joins over relational collections",
		Long: `simjoin finds every pair of records whose tokenized attributes have a
Jaccard similarity at or above a threshold, and publishes the pairs as a
two-column relation.

Examples:
  simjoin join --left people --left-key id --left-attr name --threshold 0.8 --output people_dups
  simjoin join --csv --left people.csv --left-key id --left-attr name --output dups
  simjoin evaluate --truth gold --truth-left a --truth-right b --computed people_dups`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&c.csvMode, "csv", false, "read collections from CSV files and write results to stdout")

	root.AddCommand(c.joinCmd(false), c.joinCmd(true), c.evaluateCmd())
	return root
}
