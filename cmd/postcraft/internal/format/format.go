// Package format renders values for the terminal: markdown, token counts,
// durations and width-aware truncation.
package format

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/mattn/go-runewidth"
)

// IsDarkBG is set once in main so glamour never queries the terminal itself.
var IsDarkBG bool

var (
	mdRenderer      *glamour.TermRenderer
	mdRendererMu    sync.Mutex
	mdRendererWidth int
)

// RenderMarkdown converts markdown to terminal output wrapped at width. On
// any renderer error the text is returned unchanged.
func RenderMarkdown(text string, width int) string {
	if width <= 0 {
		width = 100
	}

	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()

	if mdRenderer == nil || width != mdRendererWidth {
		style := glamourstyles.LightStyleConfig
		if IsDarkBG {
			style = glamourstyles.DarkStyleConfig
		}

		r, err := glamour.NewTermRenderer(
			glamour.WithStyles(style),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return text
		}
		mdRenderer = r
		mdRendererWidth = width
	}

	out, err := mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Truncate shortens s to at most width terminal columns, ending in "..."
// when cut. Newlines become spaces.
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return runewidth.Truncate(s, width, "...")
}

// PadRight pads s with spaces to width columns.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// FmtTokens formats a token count for display, using k/M suffixes.
func FmtTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FmtDuration formats a duration for display.
func FmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// Rule returns a line of n copies of ch.
func Rule(ch string, n int) string {
	return strings.Repeat(ch, n)
}
