package presco

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"prescosync/lib/browser"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// states of a single authentication-and-download attempt
type attemptState string

const (
	stateStart            attemptState = "start"
	statePageLoaded       attemptState = "page_loaded"
	stateAuthenticated    attemptState = "authenticated"
	stateReportConfigured attemptState = "report_configured"
	stateDownloadReady    attemptState = "download_ready"
	stateDownloaded       attemptState = "downloaded"
)

// Retrieve logs into the partner portal, filters the action log to
// the given period and exports it as a CSV, returning the path of the
// downloaded file. The whole attempt is retried up to maxAttempts on
// transient failures with a linear backoff.
func (c *Client) Retrieve(ctx context.Context, creds Credentials, period Period, maxAttempts int) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("period", string(period)))

	if err := c.Probe(ctx); err != nil {
		slog.WarnContext(ctx, "portal probe failed", "err", err)
	}

	dest := filepath.Join(c.scratchDir, fmt.Sprintf("presco_%s.csv", period))

	path, err := retrieveWithRetry(ctx, maxAttempts, sleepContext,
		func(ctx context.Context, attempt int) (string, error) {
			return c.attempt(ctx, creds, period, dest, attempt)
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return "", err
	}
	return path, nil
}

// attempt runs the full state machine once. The browser session is
// scoped to this attempt and torn down unconditionally.
func (c *Client) attempt(ctx context.Context, creds Credentials, period Period, dest string, attempt int) (string, error) {
	ctx, span := tracer.Start(ctx, "client:attempt")
	defer span.End()

	state := stateStart
	session := browser.NewSession(ctx, c.browserOpt)
	defer session.Close()

	fail := func(err error) (string, error) {
		span.SetAttributes(attribute.String("state", string(state)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt failed")
		c.captureFailure(session, attempt)
		return "", fmt.Errorf("attempt failed in state %s: %w", state, err)
	}

	// login entry point, retried inline since first navigation is the
	// flakiest step of the whole flow
	var navErr error
	for i := 0; i < 3; i++ {
		navErr = session.Navigate(c.baseUrl.JoinPath(loginPath).String())
		if navErr == nil {
			break
		}
		slog.WarnContext(ctx, "retrying login page navigation", "err", navErr)
		session.Sleep(time.Second * 5)
	}
	if navErr != nil {
		return fail(navErr)
	}
	if err := session.WaitVisible(usernameField); err != nil {
		return fail(err)
	}
	state = statePageLoaded

	if err := session.Fill(usernameField, creds.Email); err != nil {
		return fail(err)
	}
	if err := session.Fill(passwordField, creds.Password); err != nil {
		return fail(err)
	}
	// a navigation-wait timeout here is not trustworthy, the portal
	// sometimes finishes the redirect after the deadline. proceed and
	// verify by URL instead.
	if err := session.Click(submitButton); err != nil {
		return fail(err)
	}
	session.Sleep(time.Second * 3)

	location, err := session.Location()
	if err != nil {
		return fail(err)
	}
	if authBounced(location) {
		return fail(LoginFailed)
	}
	state = stateAuthenticated
	slog.InfoContext(ctx, "logged in", "attempt", attempt)

	if err := session.Navigate(c.baseUrl.JoinPath(actionLogPath).String()); err != nil {
		return fail(err)
	}
	session.Sleep(time.Second * 3)

	// basis radio is best-effort, the listing defaults are acceptable
	selector, err := session.ClickAny(basisSelectors(c.basis), time.Second*5)
	if err != nil {
		slog.WarnContext(ctx, "could not select aggregation basis, using defaults", "err", err)
	} else {
		slog.DebugContext(ctx, "selected aggregation basis", "selector", selector)
	}
	session.Sleep(time.Second)

	periodSelector, ok := periodSelectors[period]
	if !ok {
		return fail(fmt.Errorf("unknown period %q", period))
	}
	if err := session.Click(periodSelector); err != nil {
		return fail(err)
	}
	session.Sleep(time.Second)

	if err := session.Click(filterButton); err != nil {
		return fail(err)
	}
	state = stateReportConfigured
	session.Sleep(time.Second * 5)

	html, err := session.OuterHTML()
	if err != nil {
		return fail(err)
	}
	info, err := inspectReportPage(html)
	if err != nil {
		return fail(err)
	}
	slog.InfoContext(ctx, "report results settled",
		"rows", info.ResultRows,
		"export_link", info.HasExportLink,
	)

	if err := session.WaitVisible(exportLink); err != nil {
		return fail(err)
	}
	state = stateDownloadReady

	if err := session.Download(exportLink, dest, time.Minute); err != nil {
		return fail(err)
	}
	state = stateDownloaded

	slog.InfoContext(ctx, "export downloaded", "path", dest, "period", period)
	return dest, nil
}

// the portal answers a failed login with a bounce back to the login
// or logout page, credentials are assumed correct so this is fatal
// rather than retried
func authBounced(location string) bool {
	return strings.Contains(location, "logout") ||
		strings.Contains(location, "login")
}

func (c *Client) captureFailure(session *browser.Session, attempt int) {
	path := filepath.Join(c.scratchDir, fmt.Sprintf("failure_attempt_%d.png", attempt))
	err := session.Screenshot(path)
	if err != nil {
		slog.Debug("failed to capture failure screenshot", "err", err)
		return
	}
	slog.Info("captured failure screenshot", "path", path)
}
