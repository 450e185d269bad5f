package mask

import (
	"strings"
)

const filler = "X"

// DeniedMarker is the fixed indicator shown for denied fields.
const DeniedMarker = "ACCESS DENIED"

// Partial redacts a value keeping only its first and last character.
// Short inputs still get at least one filler character, so nothing
// shorter than three characters leaks through. Empty stays empty.
func Partial(value string) string {
	runes := []rune(value)
	if len(runes) == 0 {
		return ""
	}

	interior := len(runes) - 2
	if interior < 1 {
		interior = 1
	}

	var b strings.Builder
	b.WriteRune(runes[0])
	b.WriteString(strings.Repeat(filler, interior))
	b.WriteRune(runes[len(runes)-1])
	return b.String()
}
