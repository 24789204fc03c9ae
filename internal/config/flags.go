package config

// This file binds Config fields to pflag flags and merges values from a config
// file and IMGSHIFT_* environment variables through viper.
// Precedence: explicit flag > environment > config file > DefaultConfig.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/registry"
)

// EnvPrefix is the prefix for environment overrides (IMGSHIFT_FORMAT, …).
const EnvPrefix = "IMGSHIFT"

// BindFlags registers the conversion, output, and display flags on fs.
// Flag defaults come from cfg, so call it with a [DefaultConfig] value.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	defineConversionFlags(fs, cfg)
	defineOutputFlags(fs, cfg)
	defineDisplayFlags(fs, cfg)
}

// defineConversionFlags registers -f/--format, -l/--level, --sort, --jobs, --no-verify, --dedupe, --password.
func defineConversionFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.VarP(&formatValue{&cfg.Format}, "format", "f", "Output format: jpeg | png | heic | webp | tiff | bmp | gif")
	fs.IntVarP(&cfg.Level, "level", "l", cfg.Level, "Compression level 0 (smallest) to 5 (best quality)")
	fs.Var(&sortValue{&cfg.Sort}, "sort", "Order files before saving: none | name | date | size")
	fs.IntVarP(&cfg.Jobs, "jobs", "j", cfg.Jobs, "Files to convert in parallel")
	fs.Var(&invertedBool{&cfg.Verify}, "no-verify", "Skip reading back each output to check it")
	fs.Lookup("no-verify").NoOptDefVal = "true"
	fs.BoolVar(&cfg.Dedupe, "dedupe", cfg.Dedupe, "Rename outputs that collide within a batch instead of overwriting")
	fs.StringVar(&cfg.Password, "password", "", "Seal each output with this password (AES-256-GCM, Argon2id)")
}

// defineOutputFlags registers -o/--out, --no-reveal, -n/--dry-run.
func defineOutputFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.OutputDir, "out", "o", cfg.OutputDir, "Destination folder (prompted for when omitted on a terminal)")
	fs.Var(&invertedBool{&cfg.Reveal}, "no-reveal", "Do not reveal the result in the file browser")
	fs.Lookup("no-reveal").NoOptDefVal = "true"
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", cfg.DryRun, "Convert in memory only; write nothing")
}

// defineDisplayFlags registers --color, -v/--verbose, --log, --config.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Var(&colorValue{&cfg.ColorMode}, "color", "Colored logs: auto | always | never")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Read defaults from a YAML, TOML or JSON file")
}

// Load fills every flag the user did not set from the environment and, when
// cfg.ConfigFile is set, from that file. Keys are flag names; environment
// variables use EnvPrefix and underscores (IMGSHIFT_NO_VERIFY).
func Load(fs *pflag.FlagSet, cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfg.ConfigFile != "" {
		v.SetConfigFile(cfg.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfg.ConfigFile, err)
		}
	}

	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if firstErr != nil || f.Changed || f.Name == "config" {
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, v.GetString(f.Name)); err != nil {
			firstErr = fmt.Errorf("%s: %w", f.Name, err)
		}
	})
	return firstErr
}

// pflag.Value adapters so enum types and negated switches can be flags.

type formatValue struct{ p *codec.Format }

func (f *formatValue) String() string { return strings.ToLower(string(*f.p)) }
func (f *formatValue) Type() string   { return "format" }
func (f *formatValue) Set(s string) error {
	v, err := codec.ParseFormat(s)
	if err != nil {
		return err
	}
	*f.p = v
	return nil
}

type sortValue struct{ p *registry.SortKey }

func (s *sortValue) String() string { return string(*s.p) }
func (s *sortValue) Type() string   { return "key" }
func (s *sortValue) Set(v string) error {
	k, err := registry.ParseSortKey(v)
	if err != nil {
		return err
	}
	*s.p = k
	return nil
}

type colorValue struct{ p *ColorMode }

func (c *colorValue) String() string { return string(*c.p) }
func (c *colorValue) Type() string   { return "mode" }
func (c *colorValue) Set(s string) error {
	switch m := ColorMode(strings.ToLower(s)); m {
	case ColorAuto, ColorAlways, ColorNever:
		*c.p = m
		return nil
	}
	return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
}

// invertedBool backs a --no-x switch that clears a default-true field.
type invertedBool struct{ p *bool }

func (b *invertedBool) String() string   { return fmt.Sprint(!*b.p) }
func (b *invertedBool) Type() string     { return "bool" }
func (b *invertedBool) IsBoolFlag() bool { return true }
func (b *invertedBool) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		*b.p = false
	case "false", "0", "no":
		*b.p = true
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}
