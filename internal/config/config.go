package config

// Config holds app configuration
type Config struct {
	// InputFile is the archive to split or describe, or the directory to merge
	InputFile string `mapstructure:"input"`
	// OutputFile is the directory split writes to, or the archive merge writes
	OutputFile string `mapstructure:"output"`

	// Workers bounds how many resources are converted at once
	// Zero means one per CPU
	Workers int `mapstructure:"workers"`

	// MinDataVersion is the oldest archive data version split and merge accept
	// (0 = Marathon, 1 = Marathon 2 / Infinity)
	MinDataVersion int `mapstructure:"min_data_version"`

	DryRun       bool   `mapstructure:"dry_run"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}
