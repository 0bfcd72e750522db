package render

import (
	"strings"

	"quote-shorts-pipeline/types"
)

// charWidthRatio approximates the average glyph width of the overlay font as
// a fraction of the font size. Measured against Roboto Regular.
const charWidthRatio = 0.54

// lineHeightRatio covers ascender/descender plus breathing room.
const lineHeightRatio = 1.3

const ellipsis = "…"

// FitText wraps text into the spec's safe area at the largest font size that
// fits, shrinking from FontSizeMax down to FontSizeMin. If even the minimum
// size overflows, the block is truncated with an ellipsis — a degraded but
// valid video beats aborting this late in the run.
func FitText(text string, spec types.RenderSpec) ([]string, int) {
	text = strings.Join(strings.Fields(text), " ")
	safeW, safeH := spec.SafeArea()

	for size := spec.FontSizeMax; size >= spec.FontSizeMin; size -= 2 {
		lines := wrap(text, safeW, size)
		if fits(lines, size, safeW, safeH) {
			return lines, size
		}
	}

	lines := wrap(text, safeW, spec.FontSizeMin)
	return ellipsize(lines, spec.FontSizeMin, safeW, safeH), spec.FontSizeMin
}

// wrap breaks text into lines no wider than maxWidthPx at the given font
// size. A single word wider than the line gets its own line and is handled
// by ellipsize if the minimum size is reached.
func wrap(text string, maxWidthPx, size int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if textWidth(candidate, size) > maxWidthPx {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, current)
}

// fits reports whether the wrapped block stays inside the safe area.
func fits(lines []string, size, safeW, safeH int) bool {
	if blockHeight(len(lines), size) > safeH {
		return false
	}
	for _, line := range lines {
		if textWidth(line, size) > safeW {
			return false
		}
	}
	return true
}

// ellipsize trims the block to the safe area at the minimum font size:
// overflowing lines are dropped from the end and the last kept line ends
// with an ellipsis.
func ellipsize(lines []string, size, safeW, safeH int) []string {
	maxLines := safeH / lineHeight(size)
	if maxLines < 1 {
		maxLines = 1
	}
	truncated := len(lines) > maxLines
	if truncated {
		lines = lines[:maxLines]
	}

	for i, line := range lines {
		clipped := clipLine(line, size, safeW)
		if clipped != line {
			lines[i] = clipped
			if i == len(lines)-1 {
				truncated = false // clipLine already appended the ellipsis
			}
		}
	}

	if truncated {
		last := lines[len(lines)-1]
		lines[len(lines)-1] = clipLine(last+ellipsis, size, safeW)
	}
	return lines
}

// clipLine shortens a single over-wide line, rune-safe, ending in an ellipsis.
func clipLine(line string, size, safeW int) string {
	if textWidth(line, size) <= safeW {
		return line
	}
	runes := []rune(line)
	for len(runes) > 1 && textWidth(string(runes)+ellipsis, size) > safeW {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimSpace(string(runes)) + ellipsis
}

func textWidth(s string, size int) int {
	return int(float64(len([]rune(s))) * charWidthRatio * float64(size))
}

func lineHeight(size int) int {
	return int(float64(size) * lineHeightRatio)
}

func blockHeight(lines, size int) int {
	return lines * lineHeight(size)
}

func lineSpacing(size int) int {
	return lineHeight(size) - size
}
