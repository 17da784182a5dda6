package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tanq16/partdl/internal/config"
	"github.com/tanq16/partdl/internal/inputs"
	"github.com/tanq16/partdl/internal/output"
	"github.com/tanq16/partdl/internal/scheduler"
	"github.com/tanq16/partdl/internal/standby"
	"github.com/tanq16/partdl/internal/utils"
)

var (
	cfg        = config.Default()
	configPath string
	outputPath string
)

var PartdlVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "partdl [URL...] [-o OUTPUT_PATH]",
	Short: "partdl downloads files over several parallel byte-range connections",
	Long: `partdl splits each file into byte ranges, downloads them in parallel with
resume and retry, and merges them into the destination.

Examples:
  partdl https://example.com/image.iso
  partdl https://example.com/a.zip https://example.com/b.zip -o downloads/
  partdl s3://bucket/path/to/folder/ -o mirror/`,
	Version:           PartdlVersion,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		tasks, err := tasksForURLs(args, outputPath)
		if err != nil {
			return err
		}
		return runTasks(cmd.Context(), tasks)
	},
}

// Execute runs the CLI; SIGINT and SIGTERM cancel downloads in flight and
// leave their part files for the next run.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML config file; explicitly set flags override its values")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Maximum parallel part downloads across all files (0 = min(32, 2*CPUs))")
	flags.DurationVarP(&cfg.Timeout, "timeout", "t", cfg.Timeout, "Connection timeout (eg. 5s, 10m)")
	flags.DurationVarP(&cfg.KeepAliveTimeout, "keep-alive-timeout", "k", cfg.KeepAliveTimeout, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringVarP(&cfg.UserAgent, "user-agent", "a", cfg.UserAgent, "User agent ('randomize' picks a browser agent)")
	flags.StringVarP(&cfg.Proxy, "proxy", "p", cfg.Proxy, "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.StringVar(&cfg.ProxyUsername, "proxy-username", cfg.ProxyUsername, "Proxy username (if not provided in proxy URL)")
	flags.StringVar(&cfg.ProxyPassword, "proxy-password", cfg.ProxyPassword, "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&cfg.Headers, "header", "H", cfg.Headers, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Consecutive failed attempts allowed per part (0 = unlimited)")
	flags.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Abort and retry a part receiving no data for this long")
	flags.BoolVar(&cfg.KeepAwake, "keep-awake", cfg.KeepAwake, "Keep the machine from sleeping while downloading")
	flags.StringVar(&cfg.S3Profile, "s3-profile", cfg.S3Profile, "AWS profile for s3:// URLs")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Append logs to this file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path, or directory for several URLs (inferred from the URL if empty)")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newS3Cmd())
}

func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		fileCfg, err := config.LoadFromFile(utils.LocalFS(), utils.AbsPath(configPath))
		if err != nil {
			return err
		}
		cfg = mergeFlags(cmd.Flags(), fileCfg, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := utils.InitLogger(cfg.Debug, cfg.LogFile); err != nil {
		return err
	}
	if cfg.UserAgent == "randomize" {
		cfg.UserAgent = utils.GetRandomUserAgent()
	}
	// Check if proxy URL contains auth
	parsedProxy, err := u.Parse(cfg.Proxy)
	if err == nil && parsedProxy.User != nil && cfg.ProxyUsername == "" {
		cfg.ProxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			cfg.ProxyPassword = password
		}
		parsedProxy.User = nil
		cfg.Proxy = parsedProxy.String()
	}
	log.Debug().Str("op", "cmd/setup").Int("workers", cfg.Workers).Dur("idleTimeout", cfg.IdleTimeout).Int("maxRetries", cfg.MaxRetries).Msg("Configuration loaded")
	return nil
}

// mergeFlags copies every flag the user set explicitly from flagCfg onto fileCfg.
func mergeFlags(flags *pflag.FlagSet, fileCfg, flagCfg config.Config) config.Config {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "workers":
			fileCfg.Workers = flagCfg.Workers
		case "timeout":
			fileCfg.Timeout = flagCfg.Timeout
		case "keep-alive-timeout":
			fileCfg.KeepAliveTimeout = flagCfg.KeepAliveTimeout
		case "user-agent":
			fileCfg.UserAgent = flagCfg.UserAgent
		case "proxy":
			fileCfg.Proxy = flagCfg.Proxy
		case "proxy-username":
			fileCfg.ProxyUsername = flagCfg.ProxyUsername
		case "proxy-password":
			fileCfg.ProxyPassword = flagCfg.ProxyPassword
		case "header":
			fileCfg.Headers = flagCfg.Headers
		case "max-retries":
			fileCfg.MaxRetries = flagCfg.MaxRetries
		case "idle-timeout":
			fileCfg.IdleTimeout = flagCfg.IdleTimeout
		case "keep-awake":
			fileCfg.KeepAwake = flagCfg.KeepAwake
		case "s3-profile":
			fileCfg.S3Profile = flagCfg.S3Profile
		case "debug":
			fileCfg.Debug = flagCfg.Debug
		case "log-file":
			fileCfg.LogFile = flagCfg.LogFile
		}
	})
	return fileCfg
}

// tasksForURLs maps command line URLs to tasks. A single URL may name its
// output file; several URLs share output as their directory.
func tasksForURLs(urls []string, output string) ([]utils.DownloadTask, error) {
	for _, link := range urls {
		bare, _ := inputs.SplitServerName(link)
		if _, err := u.Parse(bare); err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", link, err)
		}
	}
	if len(urls) == 1 && output != "" && !isDir(output) {
		return []utils.DownloadTask{inputs.TaskAt(urls[0], output)}, nil
	}
	dir := output
	if dir == "" {
		dir = "."
	}
	tasks := make([]utils.DownloadTask, 0, len(urls))
	for _, link := range urls {
		tasks = append(tasks, inputs.TaskFor(link, dir))
	}
	return tasks, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir()
	}
	return os.IsPathSeparator(path[len(path)-1])
}

func runTasks(ctx context.Context, tasks []utils.DownloadTask) error {
	if len(tasks) == 0 {
		return fmt.Errorf("no downloads to run")
	}
	lock := standby.Noop()
	if cfg.KeepAwake {
		var err error
		if lock, err = standby.Inhibit("downloading files"); err != nil {
			log.Warn().Str("op", "cmd/standby").Err(err).Msg("Continuing without sleep inhibition")
			output.PrintWarning(fmt.Sprintf("Sleep inhibition unavailable (%v); the system may sleep during downloads", err))
			lock = standby.Noop()
		}
	}
	defer lock.Release()

	results := scheduler.Run(ctx, tasks, scheduler.Options{
		MaxConcurrency: cfg.Workers,
		HTTPClient:     cfg.HTTPClientConfig(),
		S3Profile:      cfg.S3Profile,
		MaxRetries:     cfg.MaxRetries,
		IdleTimeout:    cfg.IdleTimeout,
	})
	var failed int
	for _, result := range results {
		if result.Status == utils.StatusFailed {
			failed++
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted; run the same command again to resume")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(results))
	}
	return nil
}
