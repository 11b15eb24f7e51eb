package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	// DefaultURL is the DeDust pools listing.
	DefaultURL = "https://dedust.io/pools"
	// DefaultWaitTimeout bounds the wait for the first table row.
	DefaultWaitTimeout = 20 * time.Second

	viewAllXPath = `//div[contains(@class, 'app-earn__content-table-row--wide')]//span[text()='View all']`
	pageTimeout  = 2 * time.Minute
	settleDelay  = 2 * time.Second
)

// ChromeConfig configures headless Chrome sessions.
type ChromeConfig struct {
	URL         string
	WaitTimeout time.Duration
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
	Logger   *slog.Logger
}

func (c *ChromeConfig) defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Chrome opens headless Chrome sessions through chromedp.
type Chrome struct {
	cfg ChromeConfig
}

func NewChrome(cfg ChromeConfig) *Chrome {
	cfg.defaults()
	return &Chrome{cfg: cfg}
}

// Open launches a fresh headless Chrome process. The session is detached
// from ctx cancellation; callers end it with Close.
func (c *Chrome) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-crash-reporter", true),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		cfg:           c.cfg,
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromeSession struct {
	cfg           ChromeConfig
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
	closeErr      error
}

func (s *chromeSession) Render(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, pageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(s.cfg.URL)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", s.cfg.URL, err)
	}

	waitCtx, waitCancel := context.WithTimeout(runCtx, s.cfg.WaitTimeout)
	err := chromedp.Run(waitCtx,
		chromedp.WaitReady("."+rowClass, chromedp.ByQuery),
		chromedp.WaitVisible(viewAllXPath, chromedp.BySearch),
	)
	waitCancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrExtractionTimeout, s.cfg.WaitTimeout)
		}
		return "", fmt.Errorf("wait for pools table: %w", err)
	}

	if err := chromedp.Run(runCtx, chromedp.Click(viewAllXPath, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrShowAllMissing, err)
	}
	s.cfg.Logger.Info("click view all")

	var page string
	if err := chromedp.Run(runCtx,
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return page, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}
