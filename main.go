package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/wadsplit/internal/config"
	"github.com/ossyrian/wadsplit/internal/logging"
	"github.com/ossyrian/wadsplit/internal/scenario"
	"github.com/ossyrian/wadsplit/internal/unimap"
	"github.com/ossyrian/wadsplit/internal/wad"
)

var (
	cfgFile  string
	cfg      *config.Config
	closeLog = func() error { return nil }
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:               "wadsplit",
	Short:             "Split Marathon scenario files into editable folders and merge them back",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe a scenario archive",
	RunE:  info,
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Write the levels and resources of an archive to a folder",
	RunE:  split,
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Build an archive from a folder written by split",
	RunE:  merge,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(infoCmd, splitCmd, mergeCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "path to config file")

	// i/o
	flags.StringP("input", "i", "", "archive to split or describe, or folder to merge (required)")
	flags.StringP("output", "o", "", "folder to split into, or archive to merge into")

	// scenario settings
	flags.IntP("workers", "w", 0, "resources to convert at once (0 = one per CPU)")
	flags.Int("min-data-version", wad.DataVersionMarathonTwo, "oldest archive data version to accept (0 = Marathon, 1 = Marathon 2)")

	// other opts
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")
	flags.Bool("dry-run", false, "run without writing output (validation)")

	viper.BindPFlag("input", flags.Lookup("input"))
	viper.BindPFlag("output", flags.Lookup("output"))
	viper.BindPFlag("workers", flags.Lookup("workers"))
	viper.BindPFlag("min_data_version", flags.Lookup("min-data-version"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_output_dir", flags.Lookup("log-output-dir"))
	viper.BindPFlag("dry_run", flags.Lookup("dry-run"))
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "wadsplit"))
		}
		viper.AddConfigPath("/etc/wadsplit")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("WADSPLIT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setup loads the configuration and installs the logger before any
// subcommand runs
func setup(cmd *cobra.Command, args []string) error {
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c, err := logging.Setup(cfg.LogLevel, cfg.LogOutputDir)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	closeLog = c

	if cfg.InputFile == "" {
		return errors.New("--input is required")
	}
	return nil
}

// filesystem returns the OS filesystem, or an in-memory overlay of it
// when this is a dry run
func filesystem() afero.Fs {
	fs := afero.NewOsFs()
	if cfg.DryRun {
		slog.Info("dry run: output is computed but not written")
		return scenario.DryRun(fs)
	}
	return fs
}

func options() scenario.Options {
	opts := scenario.DefaultOptions()
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	opts.MinDataVersion = int16(cfg.MinDataVersion)
	return opts
}

// info prints the header, levels and resources of an archive
func info(cmd *cobra.Command, args []string) error {
	archive := unimap.New(afero.NewOsFs(), slog.Default())
	if err := archive.Open(cfg.InputFile); err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.InputFile, err)
	}
	defer archive.Close()

	out := cmd.OutOrStdout()
	fmt.Fprint(out, archive.Describe())

	for _, index := range archive.WadIndexes() {
		d, err := archive.DirectoryData(index)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %3d  %-32s entry points 0x%04x  mission 0x%04x  environment 0x%04x\n",
			index, d.LevelName, d.EntryPointFlags, uint16(d.MissionFlags), uint16(d.EnvironmentFlags))
	}

	ids, err := archive.ResourceIdentifiers()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Resources: %d\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

func split(cmd *cobra.Command, args []string) error {
	if cfg.OutputFile == "" {
		return errors.New("--output is required")
	}

	slog.Info("splitting archive", "input", cfg.InputFile, "output", cfg.OutputFile)

	summary, err := scenario.NewSplitter(filesystem(), slog.Default(), options()).Split(cfg.InputFile, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to split %s: %w", cfg.InputFile, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d levels, %d resources (%d exported raw)\n", summary.Levels, summary.Resources, summary.Skipped)
	return nil
}

func merge(cmd *cobra.Command, args []string) error {
	if cfg.OutputFile == "" {
		return errors.New("--output is required")
	}

	slog.Info("merging folder", "input", cfg.InputFile, "output", cfg.OutputFile)

	summary, err := scenario.NewMerger(filesystem(), slog.Default(), options()).Merge(cfg.InputFile, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to merge %s: %w", cfg.InputFile, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d levels, %d resources (%d skipped)\n", summary.Levels, summary.Resources, summary.Skipped)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
