package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"extruder/adapters/excel"
	"extruder/adapters/storage"
	"extruder/domain/dataset"
	"extruder/domain/spc"
	"extruder/internal"
	"extruder/internal/config"
	"extruder/internal/container"
	engine "extruder/internal/spc"
	"extruder/internal/testkit"
)

var (
	cfgFile string
	dump    bool
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "spc",
		Short:         "Filter extruder diameter logs and report process capability",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./.spc.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format: text, json, yaml or markdown")
	rootCmd.PersistentFlags().BoolVar(&dump, "dump", false, "pretty-print resolved settings and results to stderr")
	rootCmd.PersistentFlags().String("storage", "", "object store backend: local or gcs")
	rootCmd.PersistentFlags().String("storage-path", "", "local store directory")
	rootCmd.PersistentFlags().String("storage-bucket", "", "GCS bucket")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newColumnsCmd(),
		newListCmd(),
		newGenerateCmd(),
		newReindexCmd(),
	)
	return rootCmd
}

func loadSettings(cmd *cobra.Command) (*Settings, error) {
	settings, err := LoadSettings(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if dump {
		pp.Fprintln(cmd.ErrOrStderr(), settings)
	}
	return settings, nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		fromStore     bool
		lower, upper  string
		excludeWithin bool
		exclude       string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Filter one measurement column and print statistics and capability",
		Long: `Analyze reads a CSV or XLSX gauge log, resolves the data type to a column,
applies the range trim, thresholds and excluded points, and prints the
statistics, Cp/Cpk and histogram.

Example: spc analyze run.csv --data-type x --exclude-first 300 --exclude-last 300 --lower 1.70`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			req, err := buildRequest(settings.Analysis, lower, upper, excludeWithin, exclude)
			if err != nil {
				return err
			}

			result, err := readSource(cmd.Context(), settings, args[0], fromStore)
			if err != nil {
				return err
			}

			analyzer := engine.NewAnalyzer(internal.DefaultLogger)
			rep, err := analyzer.Analyze(result.Dataset, req)
			if err != nil {
				return err
			}
			if dump {
				pp.Fprintln(cmd.ErrOrStderr(), rep.Statistics)
			}

			return writeAnalysis(cmd.OutOrStdout(), settings.Output, filepath.Base(args[0]), result, rep)
		},
	}

	cmd.Flags().BoolVar(&fromStore, "store", false, "read <file> from the configured object store")
	cmd.Flags().String("data-type", "", "data type token: xy, x or y")
	cmd.Flags().String("label-column", "", "column used as the time label")
	cmd.Flags().Int("target-rows", 0, "rows kept when loading the file")
	cmd.Flags().StringVar(&lower, "lower", "", "lower threshold (empty for none)")
	cmd.Flags().StringVar(&upper, "upper", "", "upper threshold (empty for none)")
	cmd.Flags().BoolVar(&excludeWithin, "exclude-within", false, "drop values inside the thresholds instead of outside")
	cmd.Flags().Int("exclude-first", 0, "records trimmed from the start")
	cmd.Flags().Int("exclude-last", 0, "records trimmed from the end")
	cmd.Flags().StringVar(&exclude, "exclude", "", "excluded positions, e.g. 4,10-20")
	cmd.Flags().Float64("usl", 0, "upper specification limit")
	cmd.Flags().Float64("lsl", 0, "lower specification limit")
	cmd.Flags().Float64("line1", 0, "first additional reference line")
	cmd.Flags().Float64("line2", 0, "second additional reference line")
	cmd.Flags().Float64("bucket-width", 0, "histogram bucket width")
	cmd.Flags().String("histogram", "", "histogram source: filtered or raw")

	return cmd
}

// buildRequest turns settings and per-run flags into an analysis request
func buildRequest(a AnalysisSettings, lower, upper string, excludeWithin bool, exclude string) (engine.AnalysisRequest, error) {
	req := engine.DefaultAnalysisRequest(a.DataType)
	req.LabelColumn = a.LabelColumn
	req.CurvePoints = a.CurvePoints
	req.BucketWidth = a.BucketWidth
	req.HistogramSource = spc.ParseHistogramSource(a.Histogram)
	req.Limits = spc.SpecLimits{USL: a.USL, LSL: a.LSL}
	req.ReferenceLines = []float64{a.ReferenceLine, a.Line1, a.Line2}

	if a.ExcludeFirst < 0 || a.ExcludeLast < 0 {
		return req, fmt.Errorf("exclude-first and exclude-last must not be negative")
	}
	req.Filter.ExcludeFirst = a.ExcludeFirst
	req.Filter.ExcludeLast = a.ExcludeLast
	req.Filter.ExcludeWithinThreshold = excludeWithin

	var err error
	if req.Filter.LowerThreshold, err = parseThreshold(lower, math.Inf(-1)); err != nil {
		return req, fmt.Errorf("--lower: %w", err)
	}
	if req.Filter.UpperThreshold, err = parseThreshold(upper, math.Inf(1)); err != nil {
		return req, fmt.Errorf("--upper: %w", err)
	}

	positions, err := engine.ParsePositions(exclude)
	if err != nil {
		return req, fmt.Errorf("--exclude: %w", err)
	}
	req.Filter = req.Filter.WithExcluded(positions...)
	return req, nil
}

func parseThreshold(raw string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

// readSource parses a local file, or an object from the configured store
func readSource(ctx context.Context, settings *Settings, name string, fromStore bool) (*excel.ReadResult, error) {
	format, ok := dataset.FormatOf(name)
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", name)
	}

	var src io.ReadCloser
	if fromStore {
		store, err := storage.Open(ctx, settings.StorageConfig())
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if src, err = store.Open(ctx, name); err != nil {
			return nil, err
		}
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		src = f
	}
	defer src.Close()

	reader := excel.NewDataReader(excel.ReaderConfig{TargetRows: settings.Analysis.TargetRows, Comma: ','})
	return reader.Read(src, format)
}

func newColumnsCmd() *cobra.Command {
	var fromStore bool

	cmd := &cobra.Command{
		Use:   "columns <file>",
		Short: "List the columns of a measurement file with their content type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			result, err := readSource(cmd.Context(), settings, args[0], fromStore)
			if err != nil {
				return err
			}
			return writeColumns(cmd.OutOrStdout(), settings.Output, excel.ProfileColumns(result.Dataset))
		},
	}
	cmd.Flags().BoolVar(&fromStore, "store", false, "read <file> from the configured object store")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List measurement files in the object store, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			store, err := storage.Open(cmd.Context(), settings.StorageConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			objects, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			supported := objects[:0]
			for _, obj := range objects {
				if obj.Supported() {
					supported = append(supported, obj)
				}
			}
			dataset.SortNewestFirst(supported)
			return writeObjects(cmd.OutOrStdout(), settings.Output, supported)
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		rows   int
		seed   int64
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "generate <file.csv|file.xlsx>",
		Short: "Write a synthetic extrusion run for demos and load tests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			format, ok := dataset.FormatOf(name)
			if !ok {
				return fmt.Errorf("unsupported file type: %s", name)
			}

			genConfig := testkit.DefaultExtrusionConfig()
			genConfig.Rows = rows
			genConfig.Seed = seed
			gen := testkit.NewExtrusionDataGenerator(genConfig)

			if !upload {
				f, err := os.Create(name)
				if err != nil {
					return err
				}
				if err := writeGenerated(f, gen, format); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, name)
				return nil
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			store, err := storage.Open(cmd.Context(), settings.StorageConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			pr, pw := io.Pipe()
			go func() {
				pw.CloseWithError(writeGenerated(pw, gen, format))
			}()
			obj, err := store.Put(cmd.Context(), filepath.Base(name), pr)
			pr.CloseWithError(err)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", obj.Name, obj.Size)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", testkit.DefaultExtrusionConfig().Rows, "data rows to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the configured object store instead of writing locally")
	return cmd
}

func writeGenerated(w io.Writer, gen *testkit.ExtrusionDataGenerator, format dataset.Format) error {
	if format == dataset.FormatXLSX {
		return gen.WriteXLSX(w)
	}
	return gen.WriteCSV(w)
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Parse every stored file and refresh the dataset catalog",
		Long: `Reindex uses the dashboard environment (STORAGE_*, DATABASE_URL, REDIS_URL)
rather than the CLI config file, so the catalog it refreshes is the one the
dashboard reads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load()
			if err != nil {
				return err
			}
			logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
			c, err := container.New(appConfig, logger)
			if err != nil {
				return err
			}
			if err := c.Init(cmd.Context()); err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Catalog.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d files\n", n)
			return nil
		},
	}
}
