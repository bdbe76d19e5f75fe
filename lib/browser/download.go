package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

var ErrEmptyDownload = fmt.Errorf("downloaded file is empty")

// Download clicks the trigger selector, waits for the resulting file
// download to complete and moves it to dest. The artifact is
// validated to be non-empty.
func (s *Session) Download(trigger, dest string, timeout time.Duration) error {
	err := os.MkdirAll(s.opts.DownloadDir, 0o755)
	if err != nil {
		return err
	}

	done := make(chan string, 1)
	listenCtx, stopListening := context.WithCancel(s.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(v interface{}) {
		if ev, ok := v.(*cdpbrowser.EventDownloadProgress); ok {
			if ev.State == cdpbrowser.DownloadProgressStateCompleted {
				select {
				case done <- ev.GUID:
				default:
				}
			}
		}
	})

	err = s.run(
		cdpbrowser.
			SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(s.opts.DownloadDir).
			WithEventsEnabled(true),
		chromedp.Click(trigger, byKind(trigger)),
	)
	if err != nil {
		return fmt.Errorf("failed to trigger download: %w", err)
	}

	select {
	case guid := <-done:
		return s.persistDownload(guid, dest)
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for download: %s", trigger)
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Session) persistDownload(guid, dest string) error {
	src := filepath.Join(s.opts.DownloadDir, guid)
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return ErrEmptyDownload
	}
	if src == dest {
		return nil
	}
	return os.Rename(src, dest)
}

// Screenshot captures the full page to path. Callers treat this as
// best-effort diagnostics, failures are for the caller to swallow.
func (s *Session) Screenshot(path string) error {
	var buf []byte
	err := s.run(chromedp.FullScreenshot(&buf, 90))
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
