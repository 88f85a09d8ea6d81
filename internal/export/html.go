// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/zaura/internal/model"
)

// codeStyle is the chroma style used for fenced code. Styles are inlined so
// the page needs no external stylesheet.
const codeStyle = "monokai"

var (
	codeBlockRegex  = regexp.MustCompile("```([a-zA-Z0-9_+-]*)\n([\\s\\S]*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validateConversation(conv); err != nil {
		return nil, err
	}

	title := html.EscapeString(conv.GetTitle())
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"zaura\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339))
	sb.WriteString(stylesheet)
	sb.WriteString("</head>\n<body>\n    <main class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		sb.WriteString("            <div class=\"metadata\">\n")
		fmt.Fprintf(&sb, "                <span><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt))
		fmt.Fprintf(&sb, "                <span><strong>Messages:</strong> %d</span>\n", len(conv.Messages))
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </header>\n")

	for _, msg := range conv.Messages {
		sb.WriteString(e.renderMessage(msg))
	}

	sb.WriteString("    </main>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html; charset=utf-8"
}

// renderMessage renders a single message.
func (e *HTMLExporter) renderMessage(msg *model.Message) string {
	var sb strings.Builder

	role := html.EscapeString(strings.ToLower(string(msg.Role)))
	fmt.Fprintf(&sb, "        <div class=\"message %s-message\">\n", role)
	sb.WriteString("            <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                <span class=\"role-label\">%s</span>\n", html.EscapeString(msg.Role.DisplayName()))
	if e.options.IncludeTimestamps {
		fmt.Fprintf(&sb, "                <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.CreatedAt))
	}
	sb.WriteString("            </div>\n")
	sb.WriteString("            <div class=\"message-content\">\n")
	sb.WriteString(formatContent(msg.Content))
	sb.WriteString("\n            </div>\n        </div>\n")

	return sb.String()
}

// formatContent escapes content and turns fenced and inline code into HTML.
// Prose between fenced blocks is formatted on its own, so nothing in the
// message text can be mistaken for a block.
func formatContent(content string) string {
	content = strings.TrimSpace(content)

	var out []string
	last := 0
	for _, m := range codeBlockRegex.FindAllStringSubmatchIndex(content, -1) {
		out = append(out, formatProse(content[last:m[0]])...)
		out = append(out, formatCodeBlock(content[m[2]:m[3]], strings.TrimRight(content[m[4]:m[5]], "\n")))
		last = m[1]
	}
	out = append(out, formatProse(content[last:])...)
	return strings.Join(out, "\n")
}

// formatProse escapes text and splits it into paragraphs on blank lines.
// Single newlines become <br>.
func formatProse(text string) []string {
	text = html.EscapeString(text)
	text = inlineCodeRegex.ReplaceAllString(text, "<code class=\"inline-code\">$1</code>")

	var paras []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paras = append(paras, "<p>"+strings.ReplaceAll(para, "\n", "<br>\n")+"</p>")
	}
	return paras
}

func formatCodeBlock(lang, code string) string {
	label := ""
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}
	return fmt.Sprintf("<div class=\"code-block\">%s<pre><code class=\"language-%s\">%s</code></pre></div>",
		label, html.EscapeString(lang), highlightCode(code, lang))
}

// highlightCode renders code as HTML spans with inline colors. The language
// is guessed when the fence names none; anything chroma cannot handle is
// returned escaped and unstyled.
func highlightCode(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return html.EscapeString(code)
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.PreventSurroundingPre(true))

	var sb strings.Builder
	if err := formatter.Format(&sb, styles.Get(codeStyle), iterator); err != nil {
		return html.EscapeString(code)
	}
	return sb.String()
}

const stylesheet = `    <style>
        :root { --bg: #1a1b26; --fg: #c0caf5; --muted: #565f89; --accent: #7aa2f7; --card: #24283b; }
        @media (prefers-color-scheme: light) {
            :root { --bg: #f5f5f5; --fg: #1a1b26; --muted: #6b7280; --accent: #2563eb; --card: #ffffff; }
        }
        * { box-sizing: border-box; }
        body { margin: 0; background: var(--bg); color: var(--fg); font: 16px/1.6 system-ui, sans-serif; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header h1 { margin: 0 0 .5rem; }
        .metadata { display: flex; gap: 1.5rem; color: var(--muted); font-size: .9rem; }
        .message { background: var(--card); border-radius: 8px; padding: 1rem 1.25rem; margin: 1rem 0; }
        .user-message { border-left: 3px solid var(--accent); }
        .system-message { opacity: .8; font-style: italic; }
        .message-header { display: flex; justify-content: space-between; color: var(--muted); font-size: .85rem; }
        .role-label { font-weight: 600; color: var(--accent); }
        .code-block { margin: .75rem 0; }
        .code-lang { font-size: .75rem; color: var(--muted); }
        pre { overflow-x: auto; padding: .75rem; border-radius: 6px; background: rgba(0,0,0,.25); }
        code { font-family: ui-monospace, monospace; font-size: .9em; }
        .inline-code { padding: .1em .3em; border-radius: 4px; background: rgba(0,0,0,.2); }
    </style>
`
