// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/feedscout/feedscout/internal/config"
	"github.com/feedscout/feedscout/internal/fetch"
	"github.com/feedscout/feedscout/internal/logging"
	"github.com/feedscout/feedscout/internal/normalize"
	"github.com/feedscout/feedscout/internal/session"
)

// Tier runs browser-driven retrieval for one target site.
type Tier struct {
	renderer  Renderer
	extractor *fetch.Extractor

	baseURL            string
	pagePath           string
	userAgent          string
	contentMarker      string
	maxItems           int
	navigationTimeout  time.Duration
	contentWaitTimeout time.Duration
}

// NewTier builds the escalation tier. renderer may be a fake in tests; pass
// nil to use headless Chrome with the configured binary path.
func NewTier(site *config.SiteConfig, browserCfg *config.BrowserConfig, ret *config.RetrievalConfig, renderer Renderer) *Tier {
	if renderer == nil {
		renderer = NewChromeRenderer(browserCfg.ChromePath)
	}
	return &Tier{
		renderer:           renderer,
		extractor:          fetch.NewExtractor(site.NotFoundMarker, site.ContentMarker).WithBaseURL(site.BaseURL),
		baseURL:            strings.TrimRight(site.BaseURL, "/"),
		pagePath:           site.ProfilePath,
		userAgent:          ret.UserAgent,
		contentMarker:      site.ContentMarker,
		maxItems:           ret.MaxItems,
		navigationTimeout:  browserCfg.NavigationTimeout,
		contentWaitTimeout: browserCfg.ContentWaitTimeout,
	}
}

// Retrieve renders the target's page in an isolated browser session and
// extracts raw items, preferring in-page state over the rendered DOM. The
// session is released before return on every path.
func (t *Tier) Retrieve(ctx context.Context, target string, sess *session.Context) ([]normalize.RawItem, error) {
	result, err := t.renderer.Render(ctx, RenderRequest{
		URL:                t.baseURL + fmt.Sprintf(t.pagePath, target),
		UserAgent:          t.userAgent,
		Credentials:        sess.Credentials(),
		ContentMarker:      t.contentMarker,
		NavigationTimeout:  t.navigationTimeout,
		ContentWaitTimeout: t.contentWaitTimeout,
	})
	if err != nil {
		return nil, err
	}

	items := t.itemsFromState(result.StateJSON)
	if len(items) == 0 {
		// DOM extraction also detects the not-found marker.
		items, err = t.extractor.Extract(result.HTML, target)
		if err != nil {
			return nil, err
		}
	} else {
		logging.Debug().
			Str("target", target).
			Int("items", len(items)).
			Msg("Extracted items from in-page state")
	}

	if t.maxItems > 0 && len(items) > t.maxItems {
		items = items[:t.maxItems]
	}
	return items, nil
}

func (t *Tier) itemsFromState(stateJSON string) []normalize.RawItem {
	trimmed := strings.TrimSpace(stateJSON)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return fetch.ItemsFromStateJSON([]byte(trimmed))
}
