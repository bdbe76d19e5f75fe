package conversionfeed

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

var ErrDecode = fmt.Errorf("no candidate encoding decodes the export")

// candidate encodings in trial order, the portal has historically
// served both. utf-8 validity is the stricter check so it goes
// first, shift_jis multibyte sequences are never valid utf-8.
var decoders = []struct {
	name   string
	decode func([]byte) (string, bool)
}{
	{"utf-8", decodeUTF8},
	{"shift_jis", decodeShiftJIS},
}

// decodeExport trial-decodes the raw export bytes. The first encoding
// that decodes cleanly wins, malformed bytes under every candidate
// fail the whole file rather than silently corrupting click ids.
func decodeExport(raw []byte) (string, string, error) {
	for _, candidate := range decoders {
		text, ok := candidate.decode(raw)
		if ok {
			return text, candidate.name, nil
		}
	}
	return "", "", ErrDecode
}

func decodeShiftJIS(raw []byte) (string, bool) {
	// the x/text decoder substitutes U+FFFD instead of erroring, so a
	// replacement rune in the output means the input was not Shift_JIS
	text, err := japanese.ShiftJIS.NewDecoder().String(string(raw))
	if err != nil || strings.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return text, true
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}
