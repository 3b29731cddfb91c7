package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/music-web-crawler/config"
	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/jaki95/music-web-crawler/internal/catalog"
	"github.com/jaki95/music-web-crawler/internal/domain"
	"github.com/jaki95/music-web-crawler/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Path to the configuration file")
	query := flag.String("query", "", "Search the site and print the results")
	title := flag.String("title", "", "Title of the song to download")
	artist := flag.String("artist", "", "Artist of the song to download")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Validate required flags with explicit checks
	if *query == "" && *title == "" {
		log.Fatal("Missing required flag: -query or -title")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Keep library logs out of the spinner's way
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := run(cfg, *query, domain.Song{Title: *title, Artist: *artist}); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, query string, song domain.Song) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	session := browser.NewSession(browser.ChromeLauncher(cfg.Site, store.Dir()), cfg.Site.BaseURL)
	defer session.Close()

	var h *browser.Handle
	err = withSpinner("[cyan][1/2][reset] Opening "+cfg.Site.BaseURL+"...", func() error {
		h, err = session.EnsureReady(ctx)
		return err
	})
	if err != nil {
		return err
	}

	searcher := catalog.NewSearcher(cfg.Site.Selectors)

	if song.Title != "" {
		var filename string
		err = withSpinner("[cyan][2/2][reset] Downloading "+song.Title+"...", func() error {
			filename, err = catalog.NewDownloader(searcher).Download(ctx, h, song)
			if err != nil {
				return err
			}
			return store.Store(ctx, filename)
		})
		if err != nil {
			return err
		}
		fmt.Println(filename)
		return nil
	}

	var results []catalog.Result
	err = withSpinner("[cyan][2/2][reset] Searching for "+query+"...", func() error {
		results, err = searcher.Search(ctx, h, query)
		return err
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s - %s\n", r.Artist, r.Title)
	}
	return nil
}

// withSpinner shows a spinner with description while fn runs.
func withSpinner(description string, fn func() error) error {
	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := fn()
	close(done)
	_ = bar.Finish()
	return err
}
