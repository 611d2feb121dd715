// Feedscout - Social Profile Content Retrieval API
// Copyright 2026 Feedscout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedscout/feedscout

package session

import (
	"encoding/base64"
	"strings"
	"testing"
)

func newTestBuilder(defaults string, fallbacks map[string]string) *Builder {
	return NewBuilder(".example.com", "/", defaults, fallbacks)
}

func TestBuildFromCookieString(t *testing.T) {
	b := newTestBuilder("", nil)

	ctx := b.Build("sessionid=abc123; csrf_token=xyz")

	if ctx.Len() != 2 {
		t.Fatalf("expected 2 credentials, got %d", ctx.Len())
	}
	creds := ctx.Credentials()
	if creds[0].Name != "sessionid" || creds[0].Value != "abc123" {
		t.Errorf("unexpected first credential: %+v", creds[0])
	}
	if creds[0].Scope != ".example.com" {
		t.Errorf("expected site scope to be applied, got %q", creds[0].Scope)
	}
	if got := ctx.CookieHeader(); got != "sessionid=abc123; csrf_token=xyz" {
		t.Errorf("unexpected cookie header: %q", got)
	}
}

func TestBuildFromJSONArray(t *testing.T) {
	b := newTestBuilder("", nil)

	blob := `[{"name":"sessionid","value":"abc","domain":".other.com","path":"/app"},{"name":"csrf_token","value":"xyz"}]`
	ctx := b.Build(blob)

	if ctx.Len() != 2 {
		t.Fatalf("expected 2 credentials, got %d", ctx.Len())
	}
	creds := ctx.Credentials()
	if creds[0].Scope != ".other.com" || creds[0].Path != "/app" {
		t.Errorf("explicit scope and path should be preserved: %+v", creds[0])
	}
	if creds[1].Scope != ".example.com" || creds[1].Path != "/" {
		t.Errorf("missing scope and path should be filled from the site: %+v", creds[1])
	}
}

func TestBuildFromBase64(t *testing.T) {
	b := newTestBuilder("", nil)

	encoded := base64.StdEncoding.EncodeToString([]byte("sessionid=abc; theme=dark"))
	ctx := b.Build(encoded)

	if ctx.Len() != 2 {
		t.Fatalf("expected 2 credentials, got %d", ctx.Len())
	}
	if got := ctx.CookieHeader(); got != "sessionid=abc; theme=dark" {
		t.Errorf("unexpected cookie header: %q", got)
	}
}

func TestBuildMalformedInputDegradesToEmpty(t *testing.T) {
	b := newTestBuilder("", nil)

	for _, blob := range []string{
		`[{"name":`,
		"not-a-cookie",
		";;;",
		"=value-without-name",
	} {
		ctx := b.Build(blob)
		if ctx.Len() != 0 {
			t.Errorf("blob %q: expected empty set, got %d credentials", blob, ctx.Len())
		}
	}
}

func TestBuildMergePriority(t *testing.T) {
	b := newTestBuilder("sessionid=default; extra=fromdefault", map[string]string{
		"sessionid": "fromfallback",
		"fb_only":   "fallbackvalue",
	})

	ctx := b.Build("sessionid=fromrequest")

	byName := make(map[string]string)
	for _, cred := range ctx.Credentials() {
		byName[cred.Name] = cred.Value
	}
	if byName["sessionid"] != "fromrequest" {
		t.Errorf("request credential should win, got %q", byName["sessionid"])
	}
	if byName["extra"] != "fromdefault" {
		t.Errorf("default bundle should fill gaps, got %q", byName["extra"])
	}
	if byName["fb_only"] != "fallbackvalue" {
		t.Errorf("fallback should fill remaining gaps, got %q", byName["fb_only"])
	}
}

func TestDedupFirstWinsWithinBlob(t *testing.T) {
	b := newTestBuilder("", nil)

	ctx := b.Build("sessionid=first; sessionid=second")

	if ctx.Len() != 1 {
		t.Fatalf("expected 1 credential after dedup, got %d", ctx.Len())
	}
	if ctx.Credentials()[0].Value != "first" {
		t.Errorf("first occurrence should win, got %q", ctx.Credentials()[0].Value)
	}
}

func TestDedupKeyIncludesScopeAndPath(t *testing.T) {
	b := newTestBuilder("", nil)

	blob := `[{"name":"token","value":"a","domain":".one.com"},{"name":"token","value":"b","domain":".two.com"}]`
	ctx := b.Build(blob)

	if ctx.Len() != 2 {
		t.Errorf("same name under different scopes should both survive, got %d", ctx.Len())
	}
}

func TestFingerprintStableAcrossOrder(t *testing.T) {
	b := newTestBuilder("", nil)

	fp1 := b.Build("a=1; b=2").Fingerprint()
	fp2 := b.Build("b=2; a=1").Fingerprint()

	if fp1 != fp2 {
		t.Errorf("fingerprint should not depend on credential order: %q vs %q", fp1, fp2)
	}
	if fp1 == PublicFingerprint {
		t.Error("non-empty set must not map to the public fingerprint")
	}
}

func TestFingerprintDistinguishesValues(t *testing.T) {
	b := newTestBuilder("", nil)

	fp1 := b.Build("sessionid=abc").Fingerprint()
	fp2 := b.Build("sessionid=xyz").Fingerprint()

	if fp1 == fp2 {
		t.Error("different credential values must produce different fingerprints")
	}
}

func TestFingerprintEmptyIsPublic(t *testing.T) {
	b := newTestBuilder("", nil)

	if got := b.Build("").Fingerprint(); got != PublicFingerprint {
		t.Errorf("empty set should map to %q, got %q", PublicFingerprint, got)
	}
}

func TestCredentialsReturnsCopy(t *testing.T) {
	b := newTestBuilder("", nil)
	ctx := b.Build("a=1")

	creds := ctx.Credentials()
	creds[0].Value = "mutated"

	if ctx.Credentials()[0].Value != "1" {
		t.Error("Credentials must return a copy, not the internal slice")
	}
}

func TestCookieHeaderEmpty(t *testing.T) {
	b := newTestBuilder("", nil)
	if got := b.Build("").CookieHeader(); got != "" {
		t.Errorf("expected empty header, got %q", got)
	}
}

func TestBuildFallbacksDeterministicOrder(t *testing.T) {
	b := newTestBuilder("", map[string]string{"zz": "1", "aa": "2", "mm": "3"})

	for range 5 {
		ctx := b.Build("")
		names := make([]string, 0, ctx.Len())
		for _, cred := range ctx.Credentials() {
			names = append(names, cred.Name)
		}
		if got := strings.Join(names, ","); got != "aa,mm,zz" {
			t.Fatalf("fallbacks should apply in sorted name order, got %s", got)
		}
	}
}
