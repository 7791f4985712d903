package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gamh86/WebReaper/internal/config"
	"github.com/gamh86/WebReaper/internal/display"
	"github.com/gamh86/WebReaper/pkg/crawler"
	"github.com/gamh86/WebReaper/pkg/robotspolicy"
	"github.com/gamh86/WebReaper/pkg/urlutil"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagDepth   int
	flagDelay   int
	flagXDomain bool
	flagTLS     bool
	flagOutput  string
)

var rootCmd = &cobra.Command{
	Use:     "reaper <seed-url>",
	Short:   "Recursively archive a website to a local mirror",
	Args:    cobra.ExactArgs(1),
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	RunE:    runReaper,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to a webreaper config file")
	rootCmd.Flags().IntVar(&flagDepth, "depth", 0, "crawl depth (0 = use config default)")
	rootCmd.Flags().IntVar(&flagDelay, "delay", -1, "seconds to sleep between requests (-1 = use config default)")
	rootCmd.Flags().BoolVar(&flagXDomain, "xdomain", false, "allow following links to other domains")
	rootCmd.Flags().BoolVar(&flagTLS, "tls", false, "connect to the seed over TLS")
	rootCmd.Flags().StringVar(&flagOutput, "output", "", "archive root directory (default $HOME/WR_Reaped)")
}

func runReaper(cmd *cobra.Command, args []string) error {
	seedURL := args[0]

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flagDepth > 0 {
		cfg.Crawler.Depth = flagDepth
	}
	if flagDelay >= 0 {
		cfg.Crawler.Delay = time.Duration(flagDelay) * time.Second
	}
	if flagXDomain {
		cfg.Crawler.AllowXDomain = true
	}
	if flagTLS {
		cfg.Crawler.UseTLS = true
	}
	if flagOutput != "" {
		cfg.Storage.ArchiveRoot = flagOutput
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	term := display.New(os.Stdout, log)

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.Storage.ArchiveRoot, 0o700); err != nil {
		return fmt.Errorf("creating archive root %s: %w", cfg.Storage.ArchiveRoot, err)
	}

	var robots robotspolicy.Evaluator = robotspolicy.AllowAll{}
	if cfg.Crawler.FollowRobots {
		scheme := "http"
		if cfg.Crawler.UseTLS {
			scheme = "https"
		}
		host := urlutil.ParseHost(seedURL)
		group, err := robotspolicy.Fetch(http.DefaultClient, scheme, host, cfg.Crawler.UserAgent)
		if err != nil {
			term.PutErrorMsg("robots.txt fetch failed, allowing everything: %v", err)
		} else {
			robots = group
		}
	}

	opts := config.NewOptions(cfg)
	engine := crawler.New(opts, fs, cfg.Storage.ArchiveRoot, term, robots)

	summary, err := engine.Run(context.Background(), seedURL)
	if err != nil {
		term.PutErrorMsg("crawl failed: %v", err)
		return err
	}

	term.UpdateOperationStatus(
		"done: %d pages archived under %s (depth %d, %d already, %d twins, %d dups, took %s)",
		summary.NrReaped, cfg.Storage.ArchiveRoot, summary.DepthReached,
		summary.NrAlready, summary.NrTwins, summary.NrDups,
		summary.FinishedAt.Sub(summary.StartedAt),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
