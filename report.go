package main

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// WriteReportFile saves a rendered report under outputDir as
// <name>_<yyyymmdd>.md and returns the full path.
func WriteReportFile(content, outputDir string, reportDate time.Time, name string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(name), reportDate.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

// ReportMarkdown assembles the downloadable artifact for one analysis:
// title, a provenance line, then the generated content.
func ReportMarkdown(a Analysis, datasetName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	fmt.Fprintf(&b, "Dataset: %s | Generated %s | %s %s | %d tokens\n\n",
		datasetName,
		a.CreatedAt.Format("2006-01-02 15:04 MST"),
		a.Provider, a.Model, a.Usage.TotalTokens())
	b.WriteString(strings.TrimSpace(a.Content))
	b.WriteString("\n")
	return b.String()
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return replacer.Replace(s)
}

var (
	boldTokenRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
)

// renderReportHTML converts the markdown subset the analyses produce
// (headings, bullet lists, pipe tables, bold runs) into an HTML fragment
// for the dashboard. Everything else is escaped text.
func renderReportHTML(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var b strings.Builder

	// Open list nesting; each entry tracks whether its last <li> is still
	// open so a deeper <ul> can sit inside it.
	var openLI []bool
	closeTo := func(depth int) {
		for len(openLI) > depth {
			top := len(openLI) - 1
			if openLI[top] {
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
			openLI = openLI[:top]
		}
	}

	var tableRows [][]string
	flushTable := func() {
		if len(tableRows) == 0 {
			return
		}
		b.WriteString(`<table class="report-table">`)
		for i, cells := range tableRows {
			tag := "td"
			if i == 0 {
				tag = "th"
			}
			b.WriteString("<tr>")
			for _, c := range cells {
				b.WriteString("<" + tag + ">" + renderInlineBold(c) + "</" + tag + ">")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</table>")
		tableRows = nil
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2 {
			closeTo(0)
			cells := splitTableRow(trimmed)
			if !tableSeparatorRow(cells) {
				tableRows = append(tableRows, cells)
			}
			continue
		}
		flushTable()

		if trimmed == "" {
			closeTo(0)
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			closeTo(0)
			// The fragment lives under the page's own heading, so markdown
			// level n renders one step down.
			level := len(m[1]) + 1
			if level > 6 {
				level = 6
			}
			fmt.Fprintf(&b, "<h%d>%s</h%d>", level, renderInlineBold(strings.TrimSpace(m[2])), level)
			continue
		}

		content := strings.TrimLeft(line, " ")
		if strings.HasPrefix(content, "- ") || strings.HasPrefix(content, "* ") {
			leading := len(line) - len(content)
			depth := leading/2 + 1
			if depth > len(openLI) {
				for len(openLI) < depth {
					b.WriteString("<ul>")
					openLI = append(openLI, false)
				}
			} else {
				closeTo(depth)
			}
			if openLI[depth-1] {
				b.WriteString("</li>")
			}
			b.WriteString("<li>" + renderInlineBold(strings.TrimSpace(content[2:])))
			openLI[depth-1] = true
			continue
		}

		closeTo(0)
		b.WriteString("<p>" + renderInlineBold(trimmed) + "</p>")
	}
	flushTable()
	closeTo(0)
	return b.String()
}

func splitTableRow(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// tableSeparatorRow reports whether every cell is a ---/:--: divider.
func tableSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c == "" || strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return len(cells) > 0
}

func renderInlineBold(s string) string {
	matches := boldTokenRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return html.EscapeString(s)
	}
	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(html.EscapeString(s[last:m[0]]))
		out.WriteString("<strong>")
		out.WriteString(html.EscapeString(s[m[2]:m[3]]))
		out.WriteString("</strong>")
		last = m[1]
	}
	out.WriteString(html.EscapeString(s[last:]))
	return out.String()
}

// markdownToPlain strips headings, bold markers and extra blank lines so a
// report reads cleanly in Slack messages and terminal output.
func markdownToPlain(body string) string {
	var out []string
	prevBlank := false
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			line = strings.TrimSpace(m[2])
		}
		line = strings.ReplaceAll(line, "**", "")
		if strings.TrimSpace(line) == "" {
			if prevBlank {
				continue
			}
			prevBlank = true
			out = append(out, "")
			continue
		}
		prevBlank = false
		out = append(out, line)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}
