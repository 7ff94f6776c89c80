package site

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountryName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "France", CountryName("fr"))
	require.Equal(t, "India", CountryName(" IN "))
	require.Equal(t, "", CountryName(""))
}

func TestFlagEmoji(t *testing.T) {
	t.Parallel()

	require.Equal(t, "🇫🇷", FlagEmoji("FR"))
	require.Equal(t, "🇧🇷", FlagEmoji("br"))
	require.Equal(t, "", FlagEmoji("F1"))
	require.Equal(t, "", FlagEmoji("FRA"))
}

func TestMoney(t *testing.T) {
	t.Parallel()

	require.Equal(t, "$4.00", Money(400, "usd"))
	require.Equal(t, "$3.60", Money(360, "USD"))
	require.Equal(t, "$0.05", Money(5, ""))
	require.Equal(t, "-€1.20", Money(-120, "eur"))
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	t.Parallel()

	html, err := RenderMarkdown("**bold** <script>alert(1)</script> [link](https://example.com)")
	require.NoError(t, err)

	out := string(html)
	require.Contains(t, out, "<strong>bold</strong>")
	require.NotContains(t, out, "<script>")
	require.True(t, strings.Contains(out, `rel="nofollow noreferrer"`) || strings.Contains(out, "noreferrer"))
}
