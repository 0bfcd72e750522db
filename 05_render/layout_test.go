package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-shorts-pipeline/types"
)

func testSpec() types.RenderSpec {
	return types.RenderSpec{
		Width:       1080,
		Height:      1920,
		FontSizeMin: 28,
		FontSizeMax: 110,
		MarginRatio: 0.1,
	}
}

func TestFitText(t *testing.T) {
	spec := testSpec()
	safeW, safeH := spec.SafeArea()

	t.Run("ShortQuoteGetsLargeFont", func(t *testing.T) {
		lines, size := FitText("Dream big.", spec)
		require.Len(t, lines, 1)
		assert.Equal(t, spec.FontSizeMax, size)
	})

	t.Run("TypicalQuoteFitsSafeArea", func(t *testing.T) {
		lines, size := FitText("Success is not final, failure is not fatal: it is the courage to continue that counts.", spec)
		assert.GreaterOrEqual(t, size, spec.FontSizeMin)
		assert.LessOrEqual(t, size, spec.FontSizeMax)
		assert.True(t, fits(lines, size, safeW, safeH))
	})

	t.Run("LongerTextShrinksFont", func(t *testing.T) {
		short := "Keep going."
		long := strings.Repeat("persistence beats resistance ", 8)

		_, shortSize := FitText(short, spec)
		_, longSize := FitText(long, spec)
		assert.Less(t, longSize, shortSize)
	})

	t.Run("ExtremeOverflowTruncatesWithEllipsis", func(t *testing.T) {
		// Far beyond what any max-length constraint allows; the composer must
		// still render rather than fail.
		huge := strings.Repeat("an endless stream of words that could never fit on one vertical frame ", 60)

		lines, size := FitText(huge, spec)
		assert.Equal(t, spec.FontSizeMin, size)
		assert.True(t, fits(lines, size, safeW, safeH), "ellipsized block must fit the safe area")
		assert.True(t, strings.HasSuffix(lines[len(lines)-1], ellipsis))
	})

	t.Run("SingleGiantWordClipped", func(t *testing.T) {
		word := strings.Repeat("x", 500)
		lines, size := FitText(word, spec)

		require.Len(t, lines, 1)
		assert.Equal(t, spec.FontSizeMin, size)
		assert.True(t, fits(lines, size, safeW, safeH))
		assert.True(t, strings.HasSuffix(lines[0], ellipsis))
	})

	t.Run("WhitespaceCollapsed", func(t *testing.T) {
		lines, _ := FitText("  two\n\twords  ", spec)
		require.Len(t, lines, 1)
		assert.Equal(t, "two words", lines[0])
	})

	t.Run("DeterministicForSameInput", func(t *testing.T) {
		text := "The only way to do great work is to love what you do."
		linesA, sizeA := FitText(text, spec)
		linesB, sizeB := FitText(text, spec)
		assert.Equal(t, linesA, linesB)
		assert.Equal(t, sizeA, sizeB)
	})
}

func TestWrap(t *testing.T) {
	t.Run("NoSplitMidWord", func(t *testing.T) {
		lines := wrap("alpha beta gamma delta", 300, 40)
		for _, line := range lines {
			for _, w := range strings.Fields(line) {
				assert.Contains(t, []string{"alpha", "beta", "gamma", "delta"}, w)
			}
		}
		assert.Equal(t, "alpha beta gamma delta", strings.Join(lines, " "))
	})

	t.Run("EmptyTextYieldsNoLines", func(t *testing.T) {
		assert.Empty(t, wrap("", 300, 40))
	})

	t.Run("EachLineWithinWidthWhenWordsFit", func(t *testing.T) {
		lines := wrap("one two three four five six seven eight nine ten", 200, 30)
		for _, line := range lines {
			assert.LessOrEqual(t, textWidth(line, 30), 200)
		}
	})
}
