// Package render turns user-written comment text into safe HTML and finds
// the users it mentions.
package render

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/marmos91/mozaichub/internal/logger"
)

// Renderer converts text to HTML and extracts @mentions.
type Renderer interface {
	Render(text string) string
	Mentions(text string) []string
}

var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)

// Markdown renders GitHub-flavoured markdown with hard line breaks and
// sanitises the result with a user-generated-content policy.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy

	// UserLink builds the link target of a mention
	UserLink func(username string) string
}

// NewMarkdown creates the default renderer. Mentions link to
// /users/<username>.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy:   bluemonday.UGCPolicy(),
		UserLink: func(username string) string { return "/users/" + username },
	}
}

// Render returns sanitised HTML for text. Each @name becomes a markdown
// link to the user before conversion.
func (m *Markdown) Render(text string) string {
	linked := mentionPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1:]
		return "[@" + name + "](" + m.UserLink(name) + ")"
	})

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(linked), &buf); err != nil {
		// Conversion only fails on writer errors; fall back to escaped text.
		logger.Warn("Markdown conversion failed: %v", err)
		return m.policy.Sanitize(text)
	}
	return m.policy.Sanitize(buf.String())
}

// Mentions returns the distinct usernames mentioned in text, in order of
// first appearance.
func (m *Markdown) Mentions(text string) []string {
	return Mentions(text)
}

// Mentions is the renderer-independent mention extractor.
func Mentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		name := match[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
