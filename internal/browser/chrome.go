package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/jaki95/music-web-crawler/config"
)

const eventBuffer = 32

type downloadEvent struct {
	guid     string
	filename string
	state    browser.DownloadProgressState
	begin    bool
}

// chromeDriver drives a single Chrome tab through the DevTools protocol.
type chromeDriver struct {
	cfg         config.SiteConfig
	downloadDir string

	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	idle      chan struct{}
	downloads chan downloadEvent
}

// ChromeLauncher returns a Launcher that starts Chrome with downloads going to downloadDir.
func ChromeLauncher(cfg config.SiteConfig, downloadDir string) Launcher {
	return func(ctx context.Context) (Driver, error) {
		return launchChrome(ctx, cfg, downloadDir)
	}
}

func launchChrome(ctx context.Context, cfg config.SiteConfig, downloadDir string) (*chromeDriver, error) {
	absDir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolving download directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.IsHeadless()),
		chromedp.UserAgent(cfg.UserAgent),
	)
	// Chrome refuses to start sandboxed as root, which is the norm in containers.
	if os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}

	// The browser outlives the request that started it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}),
	)

	d := &chromeDriver{
		cfg:         cfg,
		downloadDir: absDir,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		idle:        make(chan struct{}, 1),
		downloads:   make(chan downloadEvent, eventBuffer),
	}

	chromedp.ListenTarget(tabCtx, d.onEvent)

	if err := d.start(ctx, cfg.NavigationTimeout); err != nil {
		d.Close()
		return nil, err
	}

	setupCtx, cancel := d.operation(ctx, cfg.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(setupCtx,
		page.SetLifecycleEventsEnabled(true),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(absDir).
			WithEventsEnabled(true),
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("configuring chrome: %w", err)
	}

	slog.Info("Chrome started", "headless", cfg.IsHeadless(), "downloadDir", absDir)
	return d, nil
}

// start allocates the browser and its tab on the tab context itself. A first
// Run on a cancelable child would tear the browser down with that child.
func (d *chromeDriver) start(ctx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(d.ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("starting chrome: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("starting chrome: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		return fmt.Errorf("starting chrome: %w", ctx.Err())
	}
}

// onEvent runs on the DevTools event loop and must not block.
func (d *chromeDriver) onEvent(ev any) {
	switch ev := ev.(type) {
	case *page.EventLifecycleEvent:
		if ev.Name == "networkIdle" {
			select {
			case d.idle <- struct{}{}:
			default:
			}
		}
	case *browser.EventDownloadWillBegin:
		d.pushDownload(downloadEvent{guid: ev.GUID, filename: ev.SuggestedFilename, begin: true})
	case *browser.EventDownloadProgress:
		if ev.State != browser.DownloadProgressStateInProgress {
			d.pushDownload(downloadEvent{guid: ev.GUID, state: ev.State})
		}
	}
}

func (d *chromeDriver) pushDownload(ev downloadEvent) {
	select {
	case d.downloads <- ev:
	default:
		slog.Warn("Dropping download event", "guid", ev.guid)
	}
}

// operation derives a context from the tab that ends after timeout or when ctx is done.
func (d *chromeDriver) operation(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(d.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (d *chromeDriver) wrap(err error) error {
	if d.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrPageLost, err)
	}
	return err
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := d.operation(ctx, d.cfg.NavigationTimeout)
	defer cancel()

	drain(d.idle)
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return d.wrap(fmt.Errorf("navigating to %s: %w", url, err))
	}

	select {
	case <-d.idle:
		return nil
	case <-opCtx.Done():
		return d.wrap(fmt.Errorf("waiting for network idle on %s: %w", url, opCtx.Err()))
	}
}

func (d *chromeDriver) Search(ctx context.Context, query string) (string, error) {
	opCtx, cancel := d.operation(ctx, d.cfg.SearchTimeout)
	defer cancel()

	sel := d.cfg.Selectors
	actions := []chromedp.Action{
		chromedp.WaitVisible(sel.SearchInput, chromedp.ByQuery),
		chromedp.SetValue(sel.SearchInput, "", chromedp.ByQuery),
	}
	if sel.SearchSubmit != "" {
		actions = append(actions,
			chromedp.SendKeys(sel.SearchInput, query, chromedp.ByQuery),
			chromedp.Click(sel.SearchSubmit, chromedp.ByQuery),
		)
	} else {
		actions = append(actions, chromedp.SendKeys(sel.SearchInput, query+kb.Enter, chromedp.ByQuery))
	}

	var html string
	actions = append(actions,
		chromedp.Sleep(d.cfg.RenderWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(opCtx, actions...); err != nil {
		return "", d.wrap(fmt.Errorf("searching for %q: %w", query, err))
	}
	return html, nil
}

func (d *chromeDriver) Download(ctx context.Context, index int) (string, error) {
	opCtx, cancel := d.operation(ctx, d.cfg.DownloadTimeout)
	defer cancel()

	sel := d.cfg.Selectors
	var nodes []*cdp.Node
	if err := chromedp.Run(opCtx, chromedp.Nodes(sel.ResultItem, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return "", d.wrap(fmt.Errorf("locating results: %w", err))
	}
	if index < 0 || index >= len(nodes) {
		return "", fmt.Errorf("result %d no longer on page (%d results)", index, len(nodes))
	}

	var click chromedp.Action = chromedp.MouseClickNode(nodes[index])
	if sel.DownloadButton != "" {
		click = chromedp.Click(sel.DownloadButton, chromedp.ByQuery, chromedp.FromNode(nodes[index]))
	}

	drainDownloads(d.downloads)
	if err := chromedp.Run(opCtx, click); err != nil {
		return "", d.wrap(fmt.Errorf("clicking download for result %d: %w", index, err))
	}

	return d.awaitDownload(opCtx)
}

// awaitDownload waits for the first download that starts after the click to finish.
func (d *chromeDriver) awaitDownload(ctx context.Context) (string, error) {
	var guid, suggested string
	for {
		select {
		case ev := <-d.downloads:
			if ev.begin {
				if guid == "" {
					guid, suggested = ev.guid, ev.filename
					slog.Info("Download started", "filename", suggested)
				}
				continue
			}
			if ev.guid != guid {
				continue
			}
			switch ev.state {
			case browser.DownloadProgressStateCompleted:
				return d.finalize(guid, suggested)
			case browser.DownloadProgressStateCanceled:
				return "", fmt.Errorf("download of %s was cancelled", suggested)
			}
		case <-ctx.Done():
			if guid == "" {
				return "", d.wrap(fmt.Errorf("no download started: %w", ctx.Err()))
			}
			return "", d.wrap(fmt.Errorf("waiting for %s: %w", suggested, ctx.Err()))
		}
	}
}

// finalize renames the GUID-named file Chrome wrote to its suggested name.
func (d *chromeDriver) finalize(guid, suggested string) (string, error) {
	name := SanitizeFilename(suggested)
	if name == "" {
		name = guid
	}

	src := filepath.Join(d.downloadDir, guid)
	dst := filepath.Join(d.downloadDir, name)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving downloaded file into place: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() == 0 {
		return "", errors.New("downloaded file is empty")
	}

	slog.Info("Download completed", "filename", name, "size", info.Size())
	return name, nil
}

func (d *chromeDriver) Close() error {
	if err := chromedp.Cancel(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to close chrome gracefully", "error", err)
	}
	d.cancelTab()
	d.cancelAlloc()
	return nil
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func drainDownloads(ch chan downloadEvent) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// SanitizeFilename sanitizes a filename by removing invalid characters
func SanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading and trailing spaces and dots
	return strings.Trim(result, " .")
}
