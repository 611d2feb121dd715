// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

// Package session turns raw credential material into a canonical,
// deduplicated credential set scoped to the target site.
//
// A credential blob may arrive in three forms:
//   - a cookie-header style string: "name=value; name2=value2"
//   - the same string base64-encoded
//   - a JSON array of credential objects
//
// Malformed input never fails a request; it degrades to an empty set.
package session

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// PublicFingerprint is the distinguished fingerprint shared by all callers
// that supply no credentials. It keeps their cache entries in one public
// bucket.
const PublicFingerprint = "public"

// Credential is one cookie-like named credential.
type Credential struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Scope string `json:"domain"`
	Path  string `json:"path"`
}

// credentialKey identifies a credential slot. Two credentials with the same
// key are duplicates; the first seen wins.
type credentialKey struct {
	scope string
	path  string
	name  string
}

// Context is an ordered, deduplicated credential set built fresh for one
// request. It is never persisted.
type Context struct {
	ordered []Credential
	index   map[credentialKey]struct{}
}

// NewContext returns an empty credential set.
func NewContext() *Context {
	return &Context{index: make(map[credentialKey]struct{})}
}

// Add inserts a credential unless its (scope, path, name) slot is already
// occupied. Returns true when the credential was inserted.
func (c *Context) Add(cred Credential) bool {
	if cred.Name == "" {
		return false
	}
	key := credentialKey{scope: cred.Scope, path: cred.Path, name: cred.Name}
	if _, exists := c.index[key]; exists {
		return false
	}
	c.index[key] = struct{}{}
	c.ordered = append(c.ordered, cred)
	return true
}

// Credentials returns the credentials in insertion order.
func (c *Context) Credentials() []Credential {
	out := make([]Credential, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of credentials in the set.
func (c *Context) Len() int {
	return len(c.ordered)
}

// CookieHeader renders the set as a Cookie header value.
func (c *Context) CookieHeader() string {
	parts := make([]string, 0, len(c.ordered))
	for _, cred := range c.ordered {
		parts = append(parts, cred.Name+"="+cred.Value)
	}
	return strings.Join(parts, "; ")
}

// Fingerprint returns a stable hash of the credential set, used to separate
// cache entries by caller identity. An empty set maps to PublicFingerprint.
func (c *Context) Fingerprint() string {
	if len(c.ordered) == 0 {
		return PublicFingerprint
	}

	lines := make([]string, 0, len(c.ordered))
	for _, cred := range c.ordered {
		lines = append(lines, fmt.Sprintf("%s\x00%s\x00%s\x00%s", cred.Scope, cred.Path, cred.Name, cred.Value))
	}
	// Sorted so the fingerprint does not depend on merge order.
	sort.Strings(lines)

	hash := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("%x", hash[:16])
}

// Builder builds a session Context per request by merging, in priority
// order: the request-supplied blob, the process-wide default bundle, and
// individually named fallback credentials. Later sources only fill gaps.
type Builder struct {
	scope     string
	path      string
	defaults  string
	fallbacks map[string]string
}

// NewBuilder creates a Builder for one target site.
//
// Parameters:
//   - scope, path: applied to credentials that arrive without their own
//   - defaults: process-wide default credential blob (may be empty)
//   - fallbacks: named fallback credentials (may be nil)
func NewBuilder(scope, path, defaults string, fallbacks map[string]string) *Builder {
	return &Builder{scope: scope, path: path, defaults: defaults, fallbacks: fallbacks}
}

// Build constructs the session context for one request. It is a pure
// function of its inputs and never fails: unparseable sources contribute
// nothing.
func (b *Builder) Build(requestBlob string) *Context {
	ctx := NewContext()

	for _, cred := range b.parseBlob(requestBlob) {
		ctx.Add(cred)
	}
	for _, cred := range b.parseBlob(b.defaults) {
		ctx.Add(cred)
	}

	// Deterministic fill order for the named fallbacks.
	names := make([]string, 0, len(b.fallbacks))
	for name := range b.fallbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx.Add(b.normalize(Credential{Name: name, Value: b.fallbacks[name]}))
	}

	return ctx
}

// parseBlob detects and parses any of the three accepted blob forms.
func (b *Builder) parseBlob(blob string) []Credential {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil
	}

	if strings.HasPrefix(blob, "[") {
		return b.parseJSON(blob)
	}

	// Base64 is checked before the cookie form: padding characters would
	// otherwise make an encoded blob look like a malformed cookie string.
	if decoded, ok := decodeBase64(blob); ok {
		blob = decoded
		if strings.HasPrefix(strings.TrimSpace(blob), "[") {
			return b.parseJSON(blob)
		}
	}

	return b.parseCookieString(blob)
}

// parseJSON parses a structured credential array. Entries without a name
// are skipped.
func (b *Builder) parseJSON(blob string) []Credential {
	var raw []Credential
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil
	}
	creds := make([]Credential, 0, len(raw))
	for _, cred := range raw {
		if cred.Name == "" {
			continue
		}
		creds = append(creds, b.normalize(cred))
	}
	return creds
}

// parseCookieString parses "name=value; name2=value2" pairs. Segments
// without '=' are skipped.
func (b *Builder) parseCookieString(blob string) []Credential {
	var creds []Credential
	for _, part := range strings.Split(blob, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		creds = append(creds, b.normalize(Credential{Name: name, Value: strings.TrimSpace(value)}))
	}
	return creds
}

// normalize applies the site's scope and path to credentials missing them.
func (b *Builder) normalize(cred Credential) Credential {
	if cred.Scope == "" {
		cred.Scope = b.scope
	}
	if cred.Path == "" {
		cred.Path = b.path
	}
	return cred
}

// decodeBase64 attempts standard then URL-safe base64 decoding. The decoded
// text must look like a cookie string or JSON array to be accepted.
func decodeBase64(blob string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		decoded, err := enc.DecodeString(blob)
		if err != nil {
			continue
		}
		text := string(decoded)
		if strings.Contains(text, "=") || strings.HasPrefix(strings.TrimSpace(text), "[") {
			return text, true
		}
	}
	return "", false
}
