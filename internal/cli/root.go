// Package cli implements the webir command line: index builds and updates an
// index from a document tree, search queries it interactively or in batch,
// serve exposes it over HTTP, and merge compacts its segments.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

// app carries the configuration shared by every subcommand.
type app struct {
	cfgPath      string
	analyzerName string
	cfg          *config.Config
}

// NewRootCmd builds the webir command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "webir",
		Short:         "Full-text search over a crawled document tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			a.cfg = cfg
			if _, err := a.analyzers(); err != nil {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.analyzerName, "analyzer", "simple",
		"analysis chain for text fields (simple or english)")

	root.AddCommand(
		newIndexCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
		newMergeCmd(a),
	)
	return root
}

// analyzers builds the per-field analyzer selection. Keyword and numeric
// fields bypass analysis entirely, so only text fields are affected.
func (a *app) analyzers() (*analysis.Selector, error) {
	var chain analysis.Analyzer
	switch a.analyzerName {
	case "simple", "":
		chain = analysis.Simple{}
	case "english":
		chain = analysis.English{}
	default:
		return nil, fmt.Errorf("unknown analyzer %q (want simple or english)", a.analyzerName)
	}
	sel := analysis.NewSelector(chain)
	return &sel, nil
}
