package serialize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// invisible holds the characters that print as nothing but aren't whitespace.
var invisible = rangetable.Merge(
	rangetable.New(
		'\u00AD', '\u034F', '\u061C', '\u115F', '\u1160', '\u17B4', '\u17B5', '\u180E',
		'\u2800', '\u3164', '\uFEFF', '\uFFA0',
	),
	&unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x200B, Hi: 0x200F, Stride: 1},
		{Lo: 0x2060, Hi: 0x206F, Stride: 1},
	}},
)

// stripInvisible removes invisible and non printable characters from s. Whitespace is kept.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		if unicode.Is(invisible, r) || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
}
