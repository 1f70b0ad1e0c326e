package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/textsource/engine/internal/api"
	"github.com/textsource/engine/internal/config"
	"github.com/textsource/engine/internal/finder"
	"github.com/textsource/engine/internal/loader"
)

var version = "0.3.0"

var logger = logrus.New()

func main() {
	app := &cli.App{
		Name:    "textsource",
		Usage:   "Find which corpus documents a text was lifted from",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Corpus language for stemming and stopwords (ru, en)",
			},
			&cli.StringFlag{
				Name:  "stopwords",
				Usage: "Path to a custom stopword list, one word per line",
			},
			&cli.BoolFlag{
				Name:  "no-stemming",
				Usage: "Index surface forms instead of stems",
			},
			&cli.BoolFlag{
				Name:  "keep-stopwords",
				Usage: "Keep stopwords in the token stream",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Documents per indexing batch",
			},
			&cli.IntFlag{
				Name:  "features",
				Usage: "Dimensionality of the hashed feature space",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Normalization workers (defaults to half the CPUs)",
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "How many matched files to report (0 or less for all)",
			},
			&cli.IntFlag{
				Name:  "max-positions",
				Usage: "Fragment positions reported per matched file",
			},
			&cli.IntFlag{
				Name:  "snippet-len",
				Usage: "Snippet length in characters",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Rank corpus files against a query document and locate matching fragments",
				ArgsUsage: "<documents-dir> <query-file>",
				Action:    scanCommand,
			},
			{
				Name:      "serve",
				Usage:     "Build the index and expose the HTTP query API",
				ArgsUsage: "<documents-dir>",
				Action:    serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "HTTP listen address",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(strings.ToLower(c.String("log-level")))
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}
	logger.SetLevel(level)
	return nil
}

// loadConfig reads the environment configuration and lays explicitly set
// CLI flags on top.
func loadConfig(c *cli.Context) *config.Config {
	cfg := config.Load()

	if c.IsSet("language") {
		cfg.Pipeline.Language = c.String("language")
	}
	if c.Bool("no-stemming") {
		cfg.Pipeline.UseStemming = false
	}
	if c.Bool("keep-stopwords") {
		cfg.Pipeline.RemoveStopwords = false
	}
	if c.IsSet("stopwords") {
		cfg.Pipeline.StopwordsPath = c.String("stopwords")
	}
	if c.IsSet("chunk-size") {
		cfg.Loader.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("features") {
		cfg.Index.Features = c.Int("features")
	}
	if c.IsSet("workers") {
		cfg.Finder.Workers = c.Int("workers")
	}
	if c.IsSet("top-k") {
		cfg.Finder.TopK = c.Int("top-k")
	}
	if c.IsSet("max-positions") {
		cfg.Finder.MaxPositionsPerFile = c.Int("max-positions")
	}
	if c.IsSet("snippet-len") {
		cfg.Finder.SnippetLength = c.Int("snippet-len")
	}
	if c.IsSet("addr") {
		cfg.HTTP.Addr = c.String("addr")
	}
	return cfg
}

func scanCommand(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <documents-dir> and <query-file> arguments")
	}
	corpusDir := c.Args().Get(0)
	queryPath := c.Args().Get(1)

	cfg := loadConfig(c)

	f, err := finder.New(cfg, logger.WithField("component", "finder"),
		loader.New(corpusDir, cfg.Loader.ChunkSize))
	if err != nil {
		return err
	}

	total := time.Now()
	if err := f.BuildIndex(context.Background()); err != nil {
		return err
	}

	stats := f.Stats()
	fmt.Printf("Indexed %d documents from %d files in %s\n",
		stats.Documents, stats.Files, stats.BuildDuration.Round(time.Millisecond))

	data, err := os.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("reading query file: %w", err)
	}
	queryText := strings.ToValidUTF8(string(data), "")

	queryStart := time.Now()
	matches := f.FindSources(queryText, cfg.Finder.TopK)
	if len(matches) == 0 {
		fmt.Println("No similar files found.")
		return nil
	}

	fmt.Println("\nSimilar files:")
	for _, match := range matches {
		fmt.Printf("  %s - score: %.4f\n", match.Path, match.Score)
	}

	positions := f.LocateSourcePositions(queryText, finder.LocateOptions{
		TopK:       cfg.Finder.TopK,
		MaxPerFile: cfg.Finder.MaxPositionsPerFile,
		SnippetLen: cfg.Finder.SnippetLength,
	})
	if len(positions) == 0 {
		fmt.Println("\nNo matching fragments found.")
	} else {
		fmt.Println("\nMatching fragments:")
		for _, position := range positions {
			fmt.Printf("  %s - %s %d: %s [score: %.4f]\n",
				position.Path, position.Label, position.Index, position.Snippet, position.Score)
		}
	}

	fmt.Printf("\nQuery took %s (total %s)\n",
		time.Since(queryStart).Round(time.Millisecond), time.Since(total).Round(time.Millisecond))
	return nil
}

func serveCommand(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected <documents-dir> argument")
	}
	corpusDir := c.Args().Get(0)

	cfg := loadConfig(c)

	f, err := finder.New(cfg, logger.WithField("component", "finder"),
		loader.New(corpusDir, cfg.Loader.ChunkSize))
	if err != nil {
		return err
	}
	if err := f.BuildIndex(context.Background()); err != nil {
		return err
	}

	server := api.NewServer(cfg, f, logger.WithField("component", "api"))
	return server.Start()
}
