// Package config loads the application configuration from command-line
// flags and CDE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultWorkers  = 4
	DefaultLang     = "eng"
	DefaultPSM      = 6
	DefaultDPI      = 300
	DefaultPattern  = "*"
	DefaultLogLevel = "info"
	DefaultOutName  = "extraction.xlsx"
)

// Config holds everything one extraction run needs from the outside world.
type Config struct {
	// Run inputs
	Root          string // root folder holding the subject folders
	SubjectsFile  string // text file with one subject id per line
	TargetPattern string // wildcard pattern for the target file name
	RulesFile     string // JSON rule set; empty -> built-in defaults
	OutputPath    string // XLSX destination; empty -> <root parent>/extraction.xlsx

	// Execution
	Workers  int
	LogLevel string

	// OCR backend
	Tesseract string
	Pdftoppm  string
	Lang      string
	PSM       int
	DPI       int

	// Extra gender terms merged over the built-in table (source -> label).
	GenderTerms map[string]string
}

// Default returns a configuration with the shipped defaults.
func Default() *Config {
	return &Config{
		TargetPattern: DefaultPattern,
		Workers:       DefaultWorkers,
		LogLevel:      DefaultLogLevel,
		Tesseract:     "tesseract",
		Pdftoppm:      "pdftoppm",
		Lang:          DefaultLang,
		PSM:           DefaultPSM,
		DPI:           DefaultDPI,
	}
}

// LoadFromFlags parses command-line flags (with CDE_* environment overrides)
// into a validated configuration.
func LoadFromFlags(args []string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("CDE")
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("cde", pflag.ContinueOnError)
	fs.String("root", "", "root folder containing the subject folders (required)")
	fs.String("subjects", "", "subject list file, one id per line (required)")
	fs.String("pattern", cfg.TargetPattern, "target file name pattern, wildcards * and ?")
	fs.String("rules", "", "extraction rules JSON file (default: built-in rules)")
	fs.String("out", "", "output XLSX path (default: <root parent>/"+DefaultOutName+")")
	fs.Int("workers", cfg.Workers, "number of concurrent subject workers")
	fs.String("loglevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.String("tesseract", cfg.Tesseract, "tesseract binary name or path")
	fs.String("pdftoppm", cfg.Pdftoppm, "pdftoppm binary name or path")
	fs.String("lang", cfg.Lang, "tesseract language")
	fs.Int("psm", cfg.PSM, "tesseract page segmentation mode")
	fs.Int("dpi", cfg.DPI, "rasterization DPI for scanned PDFs")
	fs.StringToString("gender-terms", nil, "extra gender term mappings, e.g. BN=Female")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	cfg.Root = v.GetString("root")
	cfg.SubjectsFile = v.GetString("subjects")
	cfg.TargetPattern = v.GetString("pattern")
	cfg.RulesFile = v.GetString("rules")
	cfg.OutputPath = v.GetString("out")
	cfg.Workers = v.GetInt("workers")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.Tesseract = v.GetString("tesseract")
	cfg.Pdftoppm = v.GetString("pdftoppm")
	cfg.Lang = v.GetString("lang")
	cfg.PSM = v.GetInt("psm")
	cfg.DPI = v.GetInt("dpi")
	cfg.GenderTerms = v.GetStringMapString("gender-terms")

	cfg.applyPathDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyPathDefaults expands the root and derives the default output path
// next to (not inside) the scanned tree, so the artifact is never picked up
// by a subsequent run.
func (c *Config) applyPathDefaults() {
	if c.Root != "" {
		if abs, err := filepath.Abs(c.Root); err == nil {
			c.Root = abs
		}
	}
	if c.OutputPath == "" && c.Root != "" {
		c.OutputPath = filepath.Join(filepath.Dir(c.Root), DefaultOutName)
	}
}

// Validate checks the configuration before the run starts.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("root folder is required (--root)")
	}
	if info, err := os.Stat(c.Root); err != nil || !info.IsDir() {
		return fmt.Errorf("root folder %q is not an accessible directory", c.Root)
	}
	if c.SubjectsFile == "" {
		return errors.New("subject list file is required (--subjects)")
	}
	if c.TargetPattern == "" {
		return errors.New("target pattern must not be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
