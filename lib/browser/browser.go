package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

type Options struct {
	Headless bool
	// directory downloads are captured into, also used as
	// scratch space for diagnostic screenshots
	DownloadDir string
	// upper bound for a single page interaction
	ActionTimeout time.Duration
	UserAgent     string
}

func (o Options) withDefaults() Options {
	if o.ActionTimeout == 0 {
		o.ActionTimeout = time.Second * 30
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}

// Session is a single browser process plus one tab. It is scoped to
// one retrieval attempt and must be torn down with Close regardless
// of outcome.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    Options
}

func NewSession(parent context.Context, opts Options) *Session {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			slog.Debug(fmt.Sprintf(format, args...))
		}),
	)

	return &Session{
		ctx:     ctx,
		cancels: []context.CancelFunc{cancel, allocCancel},
		opts:    opts,
	}
}

func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

func (s *Session) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.ActionTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *Session) Navigate(url string) error {
	return s.run(chromedp.Navigate(url))
}

func (s *Session) WaitVisible(selector string) error {
	return s.run(chromedp.WaitVisible(selector, byKind(selector)))
}

func (s *Session) Fill(selector, value string) error {
	return s.run(
		chromedp.WaitVisible(selector, byKind(selector)),
		chromedp.SetValue(selector, value, byKind(selector)),
	)
}

func (s *Session) Click(selector string) error {
	return s.run(chromedp.Click(selector, byKind(selector)))
}

func (s *Session) Location() (string, error) {
	var url string
	err := s.run(chromedp.Location(&url))
	return url, err
}

func (s *Session) OuterHTML() (string, error) {
	var html string
	err := s.run(chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Sleep(d time.Duration) {
	// lets asynchronous page state settle, bounded by the session context
	select {
	case <-time.After(d):
	case <-s.ctx.Done():
	}
}

// ClickAny tries each selector in order with a short per-selector
// timeout and returns the first one that clicked. Selectors starting
// with "//" are treated as XPath.
func (s *Session) ClickAny(selectors []string, per time.Duration) (string, error) {
	var lastErr error
	for _, selector := range selectors {
		ctx, cancel := context.WithTimeout(s.ctx, per)
		err := chromedp.Run(ctx, chromedp.Click(selector, byKind(selector)))
		cancel()
		if err == nil {
			return selector, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: tried %d selectors: %v", ErrNoLocator, len(selectors), lastErr)
}

var ErrNoLocator = fmt.Errorf("no locator strategy matched")

func byKind(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
