package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"extruder/internal/config"
)

// Settings is the CLI configuration.
// Precedence: flags > SPC_* env > config file > defaults.
type Settings struct {
	Output   string           `mapstructure:"output" yaml:"output"`
	Storage  StorageSettings  `mapstructure:"storage" yaml:"storage"`
	Analysis AnalysisSettings `mapstructure:"analysis" yaml:"analysis"`
}

// StorageSettings selects the object store used by list, analyze --store
// and generate --upload
type StorageSettings struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	Bucket      string `mapstructure:"bucket" yaml:"bucket"`
	Credentials string `mapstructure:"credentials" yaml:"credentials"`
}

// AnalysisSettings are the defaults for analyze
type AnalysisSettings struct {
	DataType      string  `mapstructure:"data_type" yaml:"data_type"`
	LabelColumn   string  `mapstructure:"label_column" yaml:"label_column"`
	TargetRows    int     `mapstructure:"target_rows" yaml:"target_rows"`
	ExcludeFirst  int     `mapstructure:"exclude_first" yaml:"exclude_first"`
	ExcludeLast   int     `mapstructure:"exclude_last" yaml:"exclude_last"`
	USL           float64 `mapstructure:"usl" yaml:"usl"`
	LSL           float64 `mapstructure:"lsl" yaml:"lsl"`
	ReferenceLine float64 `mapstructure:"reference_line" yaml:"reference_line"`
	Line1         float64 `mapstructure:"line1" yaml:"line1"`
	Line2         float64 `mapstructure:"line2" yaml:"line2"`
	BucketWidth   float64 `mapstructure:"bucket_width" yaml:"bucket_width"`
	CurvePoints   int     `mapstructure:"curve_points" yaml:"curve_points"`
	Histogram     string  `mapstructure:"histogram" yaml:"histogram"`
}

// flagKeys maps command flags onto settings keys
var flagKeys = map[string]string{
	"output":         "output",
	"data-type":      "analysis.data_type",
	"label-column":   "analysis.label_column",
	"target-rows":    "analysis.target_rows",
	"exclude-first":  "analysis.exclude_first",
	"exclude-last":   "analysis.exclude_last",
	"usl":            "analysis.usl",
	"lsl":            "analysis.lsl",
	"line1":          "analysis.line1",
	"line2":          "analysis.line2",
	"bucket-width":   "analysis.bucket_width",
	"histogram":      "analysis.histogram",
	"storage":        "storage.backend",
	"storage-path":   "storage.path",
	"storage-bucket": "storage.bucket",
}

// LoadSettings reads cfgFile (optional), SPC_* environment variables and
// any flags in flags that were set
func LoadSettings(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("SPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("output", "text")
	v.SetDefault("storage.backend", config.StorageLocal)
	v.SetDefault("storage.path", "uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.credentials", "")
	v.SetDefault("analysis.data_type", "x")
	v.SetDefault("analysis.label_column", "MCGS_TIME")
	v.SetDefault("analysis.target_rows", 10000)
	v.SetDefault("analysis.exclude_first", 300)
	v.SetDefault("analysis.exclude_last", 300)
	v.SetDefault("analysis.usl", 1.80)
	v.SetDefault("analysis.lsl", 1.70)
	v.SetDefault("analysis.reference_line", 1.75)
	v.SetDefault("analysis.line1", 1.73)
	v.SetDefault("analysis.line2", 1.77)
	v.SetDefault("analysis.bucket_width", 0.001)
	v.SetDefault("analysis.curve_points", 200)
	v.SetDefault("analysis.histogram", "filtered")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(".spc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		// optional read
		_ = v.ReadInConfig()
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.Output = strings.ToLower(s.Output)
	s.Storage.Backend = strings.ToLower(s.Storage.Backend)
	return &s, nil
}

// StorageConfig converts the CLI storage settings for storage.Open
func (s *Settings) StorageConfig() config.StorageConfig {
	cfg := config.StorageConfig{
		Backend: s.Storage.Backend,
		Path:    s.Storage.Path,
		Bucket:  s.Storage.Bucket,
	}
	if strings.HasPrefix(strings.TrimSpace(s.Storage.Credentials), "{") {
		cfg.CredentialsJSON = s.Storage.Credentials
	} else {
		cfg.CredentialsFile = s.Storage.Credentials
	}
	return cfg
}
