package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/austinkregel/local-media/vizplayer/internal/visual"
)

// eighths are the partial block glyphs, index n fills n/8 of a cell.
var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// renderBars draws frame as vertical bars, height rows tall. Each bar is
// barWidth cells wide followed by a one-cell gap and takes the frame's
// color for its band.
func renderBars(frame *visual.Frame, barWidth, height int) string {
	if frame == nil || len(frame.Heights) == 0 || height <= 0 {
		return ""
	}
	barWidth = max(barWidth, 1)

	styles := make([]lipgloss.Style, len(frame.Heights))
	for i := range frame.Heights {
		color := visual.LowColor
		if i < len(frame.Colors) {
			color = frame.Colors[i].Hex()
		}
		styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}

	var sb strings.Builder
	for row := height - 1; row >= 0; row-- {
		for i, h := range frame.Heights {
			if i > 0 {
				sb.WriteByte(' ')
			}
			cell := cellGlyph(h, row, height)
			sb.WriteString(styles[i].Render(strings.Repeat(string(cell), barWidth)))
		}
		if row > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// cellGlyph returns the glyph for row (0 at the bottom) of a bar of
// normalized height h.
func cellGlyph(h float64, row, height int) rune {
	h = max(0, min(1, h))
	filled := int(h*float64(height*8) + 0.5) // in eighths of a cell
	n := filled - row*8
	switch {
	case n <= 0:
		return eighths[0]
	case n >= 8:
		return eighths[8]
	default:
		return eighths[n]
	}
}

// barWidthFor fits bands bars with one-cell gaps into width.
func barWidthFor(width, bands int) int {
	if bands <= 0 {
		return 1
	}
	return max(1, (width-(bands-1))/bands)
}
