/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sanitize

import (
	"strings"
	"testing"
)

func TestCommentHTML(t *testing.T) {
	out := CommentHTML(`<p>Hello <strong>world</strong><script>alert(1)</script><img src="x" onerror="y"></p>`)
	if strings.Contains(out, "script") || strings.Contains(out, "img") || strings.Contains(out, "onerror") {
		t.Errorf("dangerous markup kept: %s", out)
	}
	if !strings.Contains(out, "<strong>world</strong>") {
		t.Errorf("allowed markup dropped: %s", out)
	}
}

func TestRichHTMLKeepsImages(t *testing.T) {
	out := RichHTML(`<p><img src="https://example.com/a.png" alt="a"></p>`)
	if !strings.Contains(out, "<img") {
		t.Errorf("expected image to be kept: %s", out)
	}
}

func TestSummary(t *testing.T) {
	if got := Summary("<p>Hello</p><p>there &amp; friends</p>", 100); got != "Hello there & friends" {
		t.Errorf("Summary = %q", got)
	}
	got := Summary("<p>one two three four five six seven</p>", 15)
	if !strings.HasSuffix(got, "...") || len(got) > 18 {
		t.Errorf("Summary truncation = %q", got)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Open Source Collective": "open-source-collective",
		"  Café   Déjà vu ":      "cafe-deja-vu",
	}
	for in, want := range tests {
		if got := Slug(in, 0); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slug("a very long collective name", 6); got != "a-very" {
		t.Errorf("truncated slug = %q", got)
	}
	if got := SlugWithSuffix("webpack", 2, 0); got != "webpack-2" {
		t.Errorf("SlugWithSuffix = %q", got)
	}
	if got := SlugWithSuffix("abcdefgh", 12, 8); got != "abcde-12" {
		t.Errorf("SlugWithSuffix bounded = %q", got)
	}
}
