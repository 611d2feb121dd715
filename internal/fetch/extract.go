// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package fetch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"

	"github.com/feedscout/feedscout/internal/normalize"
)

// Embedded state assignment forms seen in server-rendered profile pages.
var (
	sigiBracketPattern = regexp.MustCompile(`(?s)window\[['"]SIGI_STATE['"]\]\s*=\s*(\{.*?\});`)
	sigiDotPattern     = regexp.MustCompile(`(?s)window\.SIGI_STATE\s*=\s*(\{.*?\});`)
)

// Keys whose values hold item collections inside embedded page state.
var (
	itemMapKeys  = []string{"ItemModule"}
	itemListKeys = []string{"awemeList", "items", "itemList"}
)

// maxSearchDepth bounds the recursive walk through embedded state objects.
const maxSearchDepth = 12

// Extractor pulls raw items out of fetched profile page HTML. It tries the
// embedded JSON payloads first and falls back to the rendered DOM.
type Extractor struct {
	notFoundMarker string
	contentMarker  string
	baseURL        string
}

// NewExtractor creates an Extractor. notFoundMarker and contentMarker are
// CSS selectors.
func NewExtractor(notFoundMarker, contentMarker string) *Extractor {
	return &Extractor{notFoundMarker: notFoundMarker, contentMarker: contentMarker}
}

// WithBaseURL sets the URL used to absolutize relative DOM links.
func (e *Extractor) WithBaseURL(baseURL string) *Extractor {
	e.baseURL = strings.TrimRight(baseURL, "/")
	return e
}

// Extract parses page HTML into raw items. Returns ErrTargetNotFound when
// the page carries the site's not-found marker. An empty result with a nil
// error means the page parsed but exposed no recognizable items.
func (e *Extractor) Extract(html, target string) ([]normalize.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	if e.notFoundMarker != "" && doc.Find(e.notFoundMarker).Length() > 0 {
		return nil, fmt.Errorf("%w: page carries not-found marker", ErrTargetNotFound)
	}

	if items := e.extractNextData(doc); len(items) > 0 {
		return items, nil
	}
	if items := e.extractSigiState(html); len(items) > 0 {
		return items, nil
	}
	if items := e.extractJSONScripts(doc); len(items) > 0 {
		return items, nil
	}
	return e.extractDOM(doc), nil
}

// extractNextData reads the <script id="__NEXT_DATA__"> payload.
func (e *Extractor) extractNextData(doc *goquery.Document) []normalize.RawItem {
	text := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return decodeAndCollect([]byte(text))
}

// extractSigiState reads window SIGI_STATE assignments in either bracket or
// dot form.
func (e *Extractor) extractSigiState(html string) []normalize.RawItem {
	m := sigiBracketPattern.FindStringSubmatch(html)
	if m == nil {
		m = sigiDotPattern.FindStringSubmatch(html)
	}
	if m == nil {
		return nil
	}
	return decodeAndCollect([]byte(m[1]))
}

// extractJSONScripts scans remaining application/json script tags.
func (e *Extractor) extractJSONScripts(doc *goquery.Document) []normalize.RawItem {
	var items []normalize.RawItem
	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		items = decodeAndCollect([]byte(sel.Text()))
		return len(items) == 0
	})
	return items
}

// extractDOM lifts minimal key/value fragments off rendered content
// elements. These carry less detail than embedded JSON but enough for a
// canonical record.
func (e *Extractor) extractDOM(doc *goquery.Document) []normalize.RawItem {
	if e.contentMarker == "" {
		return nil
	}

	var items []normalize.RawItem
	doc.Find(e.contentMarker).Each(func(_ int, sel *goquery.Selection) {
		item := normalize.RawItem{}

		anchor := sel.Find("a[href]").First()
		if href, ok := anchor.Attr("href"); ok {
			item["url"] = e.absolutize(href)
		}
		if title, ok := anchor.Attr("title"); ok && title != "" {
			item["text"] = title
		} else if alt, ok := sel.Find("img[alt]").First().Attr("alt"); ok && alt != "" {
			item["text"] = alt
		}
		if views := strings.TrimSpace(sel.Find("strong").First().Text()); views != "" {
			item["views"] = views
		}

		if len(item) > 0 {
			items = append(items, item)
		}
	})
	return items
}

func (e *Extractor) absolutize(href string) string {
	if strings.HasPrefix(href, "/") && e.baseURL != "" {
		return e.baseURL + href
	}
	return href
}

// ItemsFromStateJSON walks a serialized in-page state object for item
// collections. The escalation tier uses it on state lifted straight out of
// the rendered page.
func ItemsFromStateJSON(data []byte) []normalize.RawItem {
	return decodeAndCollect(data)
}

// decodeAndCollect parses a JSON blob and walks it for item collections.
func decodeAndCollect(data []byte) []normalize.RawItem {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil
	}
	return collectItems(decoded, 0)
}

// collectItems walks decoded page state looking for known item containers:
// an ItemModule object keyed by item id, or a list under awemeList, items,
// or itemList.
func collectItems(node any, depth int) []normalize.RawItem {
	if depth > maxSearchDepth {
		return nil
	}

	obj, ok := node.(map[string]any)
	if !ok {
		if list, ok := node.([]any); ok {
			for _, element := range list {
				if items := collectItems(element, depth+1); len(items) > 0 {
					return items
				}
			}
		}
		return nil
	}

	for _, key := range itemMapKeys {
		if module, ok := obj[key].(map[string]any); ok && len(module) > 0 {
			if items := itemsFromMap(module); len(items) > 0 {
				return items
			}
		}
	}
	for _, key := range itemListKeys {
		if list, ok := obj[key].([]any); ok && len(list) > 0 {
			if items := itemsFromList(list); len(items) > 0 {
				return items
			}
		}
	}

	for _, value := range obj {
		if items := collectItems(value, depth+1); len(items) > 0 {
			return items
		}
	}
	return nil
}

// itemsFromMap converts an id-keyed item module. The key doubles as the item
// id when the entry itself lacks one.
func itemsFromMap(module map[string]any) []normalize.RawItem {
	ids := make([]string, 0, len(module))
	for id := range module {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]normalize.RawItem, 0, len(module))
	for _, id := range ids {
		entry, ok := module[id].(map[string]any)
		if !ok {
			continue
		}
		item := normalize.RawItem(entry)
		if _, has := item["id"]; !has {
			item["id"] = id
		}
		items = append(items, item)
	}
	return items
}

func itemsFromList(list []any) []normalize.RawItem {
	items := make([]normalize.RawItem, 0, len(list))
	for _, value := range list {
		if entry, ok := value.(map[string]any); ok {
			items = append(items, normalize.RawItem(entry))
		}
	}
	return items
}
