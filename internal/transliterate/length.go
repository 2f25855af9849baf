package transliterate

import "unicode/utf16"

const (
	gsmSinglePart  = 160
	gsmMultiPart   = 153
	ucs2SinglePart = 70
	ucs2MultiPart  = 67
)

// Encoding names the alphabet a text will be sent in.
type Encoding string

const (
	EncodingGSM7 Encoding = "gsm7"
	EncodingUCS2 Encoding = "ucs2"
)

// Length describes how a text will be split into SMS parts.
type Length struct {
	Text     string   `json:"text"`
	Encoding Encoding `json:"encoding"`
	Units    int      `json:"units"`
	Parts    int      `json:"parts"`
	// Remaining is the number of units left in the last part.
	Remaining int `json:"remaining"`
}

const gsmBasic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

const gsmExtension = "\f^{}\\[~]|€"

var (
	basicSet     = runeSet(gsmBasic)
	extensionSet = runeSet(gsmExtension)
)

func runeSet(s string) map[rune]struct{} {
	out := make(map[rune]struct{}, len(s))
	for _, r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Measure transliterates text and counts the units and parts it needs.
func (t *Table) Measure(text string) Length {
	out := t.Apply(text)
	if units, ok := gsmUnits(out); ok {
		return split(out, EncodingGSM7, units, gsmSinglePart, gsmMultiPart)
	}
	units := len(utf16.Encode([]rune(out)))
	return split(out, EncodingUCS2, units, ucs2SinglePart, ucs2MultiPart)
}

func gsmUnits(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if _, ok := basicSet[r]; ok {
			n++
			continue
		}
		if _, ok := extensionSet[r]; ok {
			n += 2
			continue
		}
		return 0, false
	}
	return n, true
}

func split(text string, enc Encoding, units, single, multi int) Length {
	l := Length{Text: text, Encoding: enc, Units: units}
	switch {
	case units == 0:
		l.Parts = 0
		l.Remaining = single
	case units <= single:
		l.Parts = 1
		l.Remaining = single - units
	default:
		l.Parts = (units + multi - 1) / multi
		l.Remaining = l.Parts*multi - units
	}
	return l
}
