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

// Package sanitize cleans user supplied HTML and derives slugs and plain
// text summaries from it.
package sanitize

import (
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
)

var (
	commentPolicy = newCommentPolicy()
	updatePolicy  = newUpdatePolicy()
	stripPolicy   = bluemonday.StrictPolicy()
)

func newCommentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "s", "del", "blockquote", "ul", "ol", "li", "h3", "code", "pre")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

func newUpdatePolicy() *bluemonday.Policy {
	p := newCommentPolicy()
	p.AllowElements("h1", "h2", "h4", "hr", "figure", "figcaption")
	p.AllowImages()
	p.AllowAttrs("src", "width", "height", "allowfullscreen", "frameborder").OnElements("iframe")
	return p
}

// CommentHTML keeps the small tag set the comment editor produces.
func CommentHTML(s string) string {
	return strings.TrimSpace(commentPolicy.Sanitize(s))
}

// RichHTML keeps the richer tag set used by updates and long descriptions.
func RichHTML(s string) string {
	return strings.TrimSpace(updatePolicy.Sanitize(s))
}

// Summary strips every tag and truncates the text to maxLength runes,
// appending an ellipsis when something was cut.
func Summary(s string, maxLength int) string {
	text := html.UnescapeString(stripPolicy.Sanitize(strings.NewReplacer("<br>", " ", "</p>", " ", "</li>", " ").Replace(s)))
	text = strings.Join(strings.Fields(text), " ")
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:maxLength]))
	if i := strings.LastIndex(cut, " "); i > maxLength/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// Slug turns free text into a lowercase dash separated slug of at most
// maxLength characters.
func Slug(s string, maxLength int) string {
	out := slug.Make(s)
	if maxLength > 0 && len(out) > maxLength {
		out = strings.Trim(out[:maxLength], "-")
	}
	return out
}

// SlugWithSuffix appends -n to base, keeping the result within maxLength.
func SlugWithSuffix(base string, n int, maxLength int) string {
	suffix := "-" + strconv.Itoa(n)
	if maxLength > 0 && len(base)+len(suffix) > maxLength {
		base = strings.Trim(base[:maxLength-len(suffix)], "-")
	}
	return base + suffix
}
