package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"regiokaart/internal/aggregate"
	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/diag"
	"regiokaart/internal/geobind"
	"regiokaart/internal/ingest"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/shapes"
)

func shapeView(g *globalFlags) *shapes.View {
	return shapes.NewRepository(shapes.NewDirSource(g.shapesDir)).For(g.municipality)
}

func printDiagnostics(cmd *cobra.Command, d diag.Diagnostics) {
	for _, w := range d.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "waarschuwing:", w)
	}
	for _, e := range d.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), "fout:", e)
	}
}

func previewCmd() *cobra.Command {
	var (
		headerRow int
		delimiter string
	)
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the columns and first rows of a file and suggest coordinate columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := ingest.Preview(data, filepath.Base(args[0]), ingest.Options{HeaderRow: headerRow, Delimiter: delimiter})
			if err != nil {
				return err
			}
			printDiagnostics(cmd, res.Diagnostics)
			out := cmd.OutOrStdout()
			if res.Delimiter != 0 {
				fmt.Fprintf(out, "scheidingsteken: %q\n", res.Delimiter)
			}
			fmt.Fprintf(out, "kolomnamen (rij %d): %s\n", res.HeaderRow, strings.Join(res.Table.Columns, ", "))
			if res.SuggestedLatitude != "" || res.SuggestedLongitude != "" {
				fmt.Fprintf(out, "breedtegraad: %s, lengtegraad: %s\n", res.SuggestedLatitude, res.SuggestedLongitude)
			}
			return writeTable(out, "", res.Table)
		},
	}
	cmd.Flags().IntVar(&headerRow, "header-row", 0, "1-based row holding the column names")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field separator; inferred when empty")
	return cmd
}

type loadFlags struct {
	name, readType           string
	lat, lon, code, geometry string
	headerRow                int
	delimiter, out           string
}

func (f *loadFlags) register(cmd *cobra.Command, withReadType bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "dataset name")
	if withReadType {
		fl.StringVar(&f.readType, "read-type", string(geobind.ModeLatLong), "latlong, Buurt, Wijk, Gemeente or geometry")
		fl.StringVar(&f.code, "code", "", "region code column for Buurt/Wijk/Gemeente")
		fl.StringVar(&f.geometry, "geometry", "", "WKT geometry column for geometry")
	}
	fl.StringVar(&f.lat, "lat", "", "latitude column")
	fl.StringVar(&f.lon, "lon", "", "longitude column")
	fl.IntVar(&f.headerRow, "header-row", 0, "1-based row holding the column names")
	fl.StringVar(&f.delimiter, "delimiter", "", "field separator; inferred when empty")
	fl.StringVarP(&f.out, "out", "o", "", "write the dataset record (.json) or table (.csv, .xlsx) here instead of stdout")
}

// load reads a file into a fresh store and fails when the load was stored as an error record.
func load(ctx context.Context, g *globalFlags, f *loadFlags, file string) (*dataset.Store, *dataset.Dataset, error) {
	mode, err := geobind.ParseMode(f.readType)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, err
	}
	s := dataset.NewStore()
	d, dg, err := dataset.Load(ctx, s, dataset.LoadRequest{
		Name:      f.name,
		Filename:  filepath.Base(file),
		Data:      data,
		Mode:      mode,
		Columns:   geobind.Columns{Latitude: f.lat, Longitude: f.lon, Code: f.code, Geometry: f.geometry},
		HeaderRow: f.headerRow,
		Delimiter: f.delimiter,
	}, shapeView(g))
	if err != nil {
		return nil, nil, err
	}
	for _, w := range dg.Warnings {
		fmt.Fprintln(os.Stderr, "waarschuwing:", w)
	}
	if !d.Usable() {
		return nil, nil, fmt.Errorf("%s", d.Error)
	}
	return s, d, nil
}

func loadCmd(g *globalFlags) *cobra.Command {
	var f loadFlags
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Load a file and attach geometry to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, d, err := load(cmd.Context(), g, &f, args[0])
			if err != nil {
				return err
			}
			return writeDataset(cmd.OutOrStdout(), f.out, d)
		},
	}
	f.register(cmd, true)
	return cmd
}

func joinCmd(g *globalFlags) *cobra.Command {
	var (
		f     loadFlags
		level string
	)
	cmd := &cobra.Command{
		Use:   "join <file>",
		Short: "Assign every point of a latlong file to its region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lv, err := region.ParseLevel(level)
			if err != nil {
				return apperr.Wrap(apperr.Invalid, err.Error(), err)
			}
			f.readType = string(geobind.ModeLatLong)
			s, d, err := load(cmd.Context(), g, &f, args[0])
			if err != nil {
				return err
			}
			if err := s.AggregateInPlace(cmd.Context(), d.Name, lv, shapeView(g), revgeo.NewEngine()); err != nil {
				return err
			}
			return writeDataset(cmd.OutOrStdout(), f.out, d)
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVar(&level, "level", string(region.Buurt), "Buurt, Wijk or Gemeente")
	return cmd
}

func reduceCmd() *cobra.Command {
	var (
		by      []string
		method  string
		targets []string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "reduce <dataset.json>",
		Short: "Group a dataset record by one or two columns and reduce the targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			d, err := dataset.UnmarshalRecord(name, b)
			if err != nil {
				return err
			}
			if !d.Usable() {
				return fmt.Errorf("dataset %s holds no data: %s", name, d.Error)
			}
			res, err := aggregate.Reduce(d.Table, by, method, targets...)
			if err != nil {
				return err
			}
			printDiagnostics(cmd, res.Diagnostics)
			return writeTable(cmd.OutOrStdout(), out, res.Table)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&by, "by", nil, "group columns (one or two)")
	fl.StringVar(&method, "method", string(aggregate.Mean), "mean, max, min, sum or frequency")
	fl.StringSliceVar(&targets, "target", nil, "columns to reduce")
	fl.StringVarP(&out, "out", "o", "", "write the table (.csv, .xlsx) here instead of stdout")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func shapesCmd(g *globalFlags) *cobra.Command {
	var (
		level  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "List the regions of a level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lv, err := region.ParseLevel(level)
			if err != nil {
				return apperr.Wrap(apperr.Invalid, err.Error(), err)
			}
			set, err := shapeView(g).Get(cmd.Context(), lv)
			if err != nil {
				return err
			}
			if asJSON {
				b, err := shapes.MarshalSet(set)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			t := set.Table()
			t.Geometry = nil
			return writeTable(cmd.OutOrStdout(), "", t)
		},
	}
	cmd.Flags().StringVar(&level, "level", string(region.Buurt), "Buurt, Wijk or Gemeente")
	cmd.Flags().BoolVar(&asJSON, "geojson", false, "print the shapes as GeoJSON")
	return cmd
}
