package transliterate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultTable(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"İstanbul", "Istanbul"},
		{"Łódź", "Lodz"},
		{"şeker ĞÇ", "seker GC"},
		{"Zażółć gęślą jaźń", "Zazolc gesla jazn"},
		{"Grüße", "Grüße"},
		{"", ""},
	}
	table := Default()
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Apply(tt.in), "input %q", tt.in)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	table := Default()
	in := "Ąą Ćć Ęę Łł Ńń Óó Śś Źź Żż İı Şş Çç Ğğ plain €"
	once := table.Apply(in)
	assert.Equal(t, once, table.Apply(once))
}

func TestApplyPassesUnmappedRunes(t *testing.T) {
	table := Default()
	for _, r := range "abcXYZ019 äöüß€漢" {
		_, mapped := table.Lookup(r)
		require.False(t, mapped, "rune %q should not be mapped", r)
		assert.Equal(t, string(r), table.Apply(string(r)))
	}
}

func TestEveryEntryMapsToASCII(t *testing.T) {
	table := Default()
	require.Equal(t, 26, table.Len())
	for r, sub := range table.subst {
		for _, c := range sub {
			if c > 0x7f {
				t.Fatalf("substitute for %q is not ASCII: %q", r, sub)
			}
		}
	}
}

func TestNewCopiesInput(t *testing.T) {
	m := map[rune]string{'x': "y"}
	table := New(m)
	m['x'] = "z"
	assert.Equal(t, "y", table.Apply("x"))

	var nilTable *Table
	assert.Equal(t, "İ", nilTable.Apply("İ"))
	assert.Zero(t, nilTable.Len())
}

func TestMeasure(t *testing.T) {
	table := Default()

	l := table.Measure("Zażółć")
	assert.Equal(t, EncodingGSM7, l.Encoding)
	assert.Equal(t, "Zazolc", l.Text)
	assert.Equal(t, 6, l.Units)
	assert.Equal(t, 1, l.Parts)
	assert.Equal(t, 154, l.Remaining)

	l = table.Measure("price 5€")
	assert.Equal(t, 9, l.Units)

	l = table.Measure(strings.Repeat("a", 160))
	assert.Equal(t, 1, l.Parts)
	l = table.Measure(strings.Repeat("a", 161))
	assert.Equal(t, 2, l.Parts)
	assert.Equal(t, 306-161, l.Remaining)

	l = table.Measure("привет")
	assert.Equal(t, EncodingUCS2, l.Encoding)
	assert.Equal(t, 6, l.Units)
	l = table.Measure(strings.Repeat("ж", 71))
	assert.Equal(t, 2, l.Parts)

	l = table.Measure("")
	assert.Zero(t, l.Parts)
}
