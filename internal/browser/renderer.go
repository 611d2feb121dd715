// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package browser implements the escalation retrieval tier: an isolated
// headless browser session that navigates to the target profile, waits for
// content to render, and extracts items from in-page state or the DOM.
//
// Every session is exclusive to one request and torn down on all exit
// paths. Sessions are never pooled or reused.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/feedscout/feedscout/internal/session"
)

// Sentinel outcomes of the escalation tier.
var (
	// ErrLaunch means the automation environment could not start. Not
	// retried; a broken environment fails every attempt the same way.
	ErrLaunch = errors.New("browser launch failed")
	// ErrTimeout means navigation or content rendering exceeded its budget.
	ErrTimeout = errors.New("browser render timed out")
)

const (
	documentReadyStateScript  = "document.readyState"
	documentOuterHTMLScript   = "document.documentElement.outerHTML"
	readyStatePollInterval    = 100 * time.Millisecond
	contentMarkerPollInterval = 250 * time.Millisecond
)

// pageStateScript serializes whichever embedded state object the page
// exposes. Evaluated after render so hydrated state is visible.
const pageStateScript = `JSON.stringify(window.SIGI_STATE || (window.__NEXT_DATA__ && window.__NEXT_DATA__.props) || null)`

// RenderRequest describes one render session.
type RenderRequest struct {
	URL                string
	UserAgent          string
	Credentials        []session.Credential
	ContentMarker      string
	NavigationTimeout  time.Duration
	ContentWaitTimeout time.Duration
}

// RenderResult carries what the session observed.
type RenderResult struct {
	// HTML is the rendered document.
	HTML string
	// StateJSON is the serialized in-page state object, or "null"/empty
	// when the page exposes none.
	StateJSON string
}

// Renderer abstracts how a page is rendered, so tests can substitute a fake
// for headless Chrome.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// ChromeRenderer drives a fresh headless Chrome process per render.
type ChromeRenderer struct {
	chromePath string
}

// NewChromeRenderer creates a renderer. chromePath may be empty to use the
// binary chromedp discovers on PATH.
func NewChromeRenderer(chromePath string) *ChromeRenderer {
	return &ChromeRenderer{chromePath: chromePath}
}

// Render performs one isolated navigate-wait-extract session. The allocator
// and browser contexts are cancelled on every exit path.
func (r *ChromeRenderer) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	allocatorOptions := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOptions = append(allocatorOptions,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if req.UserAgent != "" {
		allocatorOptions = append(allocatorOptions, chromedp.UserAgent(req.UserAgent))
	}
	if r.chromePath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(r.chromePath))
	}

	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	defer cancelAllocator()

	chromeCtx, cancelChrome := chromedp.NewContext(allocatorCtx)
	defer cancelChrome()

	navCtx := chromeCtx
	if req.NavigationTimeout > 0 {
		var cancelNav context.CancelFunc
		navCtx, cancelNav = context.WithTimeout(chromeCtx, req.NavigationTimeout)
		defer cancelNav()
	}

	launchTasks := chromedp.Tasks{
		chromedp.ActionFunc(func(c context.Context) error {
			return network.Enable().Do(c)
		}),
		chromedp.ActionFunc(func(c context.Context) error {
			return emulation.SetAutomationOverride(false).Do(c)
		}),
		chromedp.ActionFunc(func(c context.Context) error {
			return setCredentials(c, req.Credentials)
		}),
	}
	if err := chromedp.Run(navCtx, launchTasks); err != nil {
		// Run failing before navigation means Chrome itself did not come
		// up (missing binary, crash on start).
		if ctx.Err() != nil {
			return RenderResult{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return RenderResult{}, fmt.Errorf("%w: browser start exceeded budget: %w", ErrTimeout, err)
		}
		return RenderResult{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	navTasks := chromedp.Tasks{
		chromedp.Navigate(req.URL),
		chromedp.ActionFunc(waitForDocumentReady),
	}
	if err := chromedp.Run(navCtx, navTasks); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return RenderResult{}, fmt.Errorf("%w: navigation budget exceeded: %w", ErrTimeout, err)
		}
		return RenderResult{}, fmt.Errorf("navigate %s: %w", req.URL, err)
	}

	// Content-marker wait is best effort: when the marker never shows the
	// page is still harvested, the not-found marker may be the reason.
	if req.ContentMarker != "" && req.ContentWaitTimeout > 0 {
		waitCtx, cancelWait := context.WithTimeout(chromeCtx, req.ContentWaitTimeout)
		_ = chromedp.Run(waitCtx, chromedp.ActionFunc(func(c context.Context) error {
			waitForContentMarker(c, req.ContentMarker)
			return nil
		}))
		cancelWait()
	}

	var result RenderResult
	harvestTasks := chromedp.Tasks{
		chromedp.Evaluate(pageStateScript, &result.StateJSON, chromedp.EvalAsValue),
		chromedp.Evaluate(documentOuterHTMLScript, &result.HTML, chromedp.EvalAsValue),
	}
	if err := chromedp.Run(chromeCtx, harvestTasks); err != nil {
		return RenderResult{}, fmt.Errorf("harvest page: %w", err)
	}
	return result, nil
}

// setCredentials injects the session's cookies before navigation.
func setCredentials(ctx context.Context, creds []session.Credential) error {
	for _, cred := range creds {
		setCookie := network.SetCookie(cred.Name, cred.Value).
			WithDomain(cred.Scope).
			WithPath(cred.Path)
		if err := setCookie.Do(ctx); err != nil {
			return fmt.Errorf("set cookie %s: %w", cred.Name, err)
		}
	}
	return nil
}

// waitForDocumentReady polls document.readyState until complete or the
// context ends.
func waitForDocumentReady(ctx context.Context) error {
	ticker := time.NewTicker(readyStatePollInterval)
	defer ticker.Stop()

	for {
		var readyState string
		err := chromedp.Evaluate(documentReadyStateScript, &readyState, chromedp.EvalAsValue).Do(ctx)
		if err == nil && strings.EqualFold(strings.TrimSpace(readyState), "complete") {
			return nil
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForContentMarker polls for the marker selector until it appears or
// the context ends. The outcome is advisory only.
func waitForContentMarker(ctx context.Context, marker string) {
	script := fmt.Sprintf("document.querySelector(%q) !== null", marker)
	ticker := time.NewTicker(contentMarkerPollInterval)
	defer ticker.Stop()

	for {
		var present bool
		if err := chromedp.Evaluate(script, &present, chromedp.EvalAsValue).Do(ctx); err == nil && present {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
