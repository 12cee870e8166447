package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMDEscapesLegacySpecials(t *testing.T) {
	assert.Equal(t, `гуглю "що робити в \[місті]" \*now\* a\_b`, MD(`гуглю "що робити в [місті]" *now* a_b`))
	assert.Equal(t, "\\`x\\`", MD("`x`"))
	assert.Equal(t, "1.5 (x)!", MD("1.5 (x)!"))
}

func TestBold(t *testing.T) {
	assert.Equal(t, `*Вік\_років*`, Bold("Вік_років"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", Clip("short", 10))
	assert.Equal(t, "абв…", Clip("абвгде", 4))
	assert.Equal(t, "abc", Clip("abc", 0))
	long := strings.Repeat("x", MaxMessage+10)
	assert.Len(t, []rune(Clip(long, MaxMessage)), MaxMessage)
}
