package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"novel-epub/config"
	"novel-epub/model"
)

// Hides the usual automation fingerprints before any page script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['vi-VN', 'vi', 'en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
window.chrome = window.chrome || {runtime: {}};
`

// Session owns one browser process; each Fetch opens its own tab.
type Session struct {
	cfg       config.BrowserConfig
	userAgent string
	log       *logrus.Entry

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func NewSession(cfg config.BrowserConfig, userAgent string, log *logrus.Entry) (*Session, error) {
	s := &Session{cfg: cfg, userAgent: userAgent, log: log}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.ShowWindow),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx)

	// start the process now so a missing browser fails here and not on the first chapter
	if err := chromedp.Run(s.browserCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.Debug("Browser initialized")
	return s, nil
}

func (s *Session) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

// Fetch renders url and returns its HTML and title.
// A nil page with a nil error means the site served an error page.
func (s *Session) Fetch(ctx context.Context, url string) (*model.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	timeout := config.Seconds(s.cfg.NavigationTimeout)
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	var title, html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"}),
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		s.scroll(),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}

	if !UsableTitle(title) {
		s.log.WithField("url", url).Warnf("Page title %q looks like an error page", title)
		return nil, nil
	}
	return &model.Page{URL: url, Title: title, HTML: html}, nil
}

// scroll wheels down the page a few times so lazy images start loading.
func (s *Session) scroll() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		x := float64(s.cfg.ViewportWidth) / 2
		y := float64(s.cfg.ViewportHeight) / 2
		delay := config.Seconds(s.cfg.ScrollDelay)
		for i := 0; i < s.cfg.ScrollCount; i++ {
			err := input.DispatchMouseEvent(input.MouseWheel, x, y).
				WithDeltaX(0).
				WithDeltaY(float64(s.cfg.ScrollDistance)).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to scroll: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		return nil
	})
}

// UsableTitle rejects empty titles and titles that mention an error.
func UsableTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t != "" && !strings.Contains(strings.ToLower(t), "error")
}
