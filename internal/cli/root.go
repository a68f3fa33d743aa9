// Package cli defines the facturador command tree.
//
//	facturador
//	├── serve      HTTP API for import sessions
//	├── preview    parse a spreadsheet and print the invoices it would issue
//	├── issue      parse and issue every row, one at a time
//	└── version
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/facturador/internal/config"
	"github.com/JonMunkholm/facturador/internal/logging"
	"github.com/spf13/cobra"
)

// options is shared by every subcommand. cfg is filled in by the root's
// PersistentPreRunE.
type options struct {
	logLevel    string
	logFormat   string
	aliasesFile string

	cfg *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "facturador",
		Short: "Bulk invoice issuance from spreadsheets",
		Long: `facturador reads invoice rows from an xlsx or csv spreadsheet, turns each
row into an issuance request and submits them one at a time to the
issuance service.

Configuration comes from the environment (and a .env file when present).

Example Usage:
  facturador preview facturas.xlsx          # Show what would be issued
  facturador issue facturas.xlsx            # Issue every row
  facturador serve                          # Start the HTTP API`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: text or json (overrides LOG_FORMAT)")
	pf.StringVar(&opts.aliasesFile, "aliases", "", "YAML file with extra column aliases (overrides COLUMN_ALIASES_FILE)")

	root.AddCommand(
		newServeCommand(opts),
		newPreviewCommand(opts),
		newIssueCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load reads configuration, applies flag overrides and sets up logging.
func (o *options) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if o.aliasesFile != "" {
		cfg.Upload.AliasesFile = o.aliasesFile
	}
	o.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
