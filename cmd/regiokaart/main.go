// regiokaart is the command line face of the ingest, join and aggregation pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"regiokaart/internal/logger"
	"regiokaart/internal/version"
)

type globalFlags struct {
	logLevel     string
	logFormat    string
	shapesDir    string
	municipality string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "regiokaart",
		Short: "Load tabular data, attach it to Dutch regions and aggregate it",
		Long: `regiokaart reads spreadsheets and delimited text, binds rows to buurt, wijk or
gemeente geometry and reduces them per region.

Example:
  regiokaart preview metingen.csv
  regiokaart join metingen.csv --lat lat --lon lon --level Buurt -o metingen.json
  regiokaart reduce metingen.json --by BU_CODE --method mean --target waarde -o per_buurt.xlsx`,
		Version:       version.Commit,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWith(g.logLevel, g.logFormat)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "warn", "debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "text", "text or json")
	pf.StringVar(&g.shapesDir, "shapes-dir", "data/shapes", "directory with buurt/wijk/gemeente GeoJSON")
	pf.StringVar(&g.municipality, "municipality", "Tilburg", "municipality to restrict shapes to, or All")

	root.AddCommand(previewCmd())
	root.AddCommand(loadCmd(&g))
	root.AddCommand(joinCmd(&g))
	root.AddCommand(reduceCmd())
	root.AddCommand(shapesCmd(&g))
	return root
}
