// Package transliterate maps characters the gateway cannot carry to plain
// ASCII substitutes and measures how many SMS parts a text occupies.
package transliterate

import (
	"strings"
	"sync"
)

// Table is an immutable rune to ASCII substitution map.
type Table struct {
	subst map[rune]string
}

// New copies m into a Table.
func New(m map[rune]string) *Table {
	subst := make(map[rune]string, len(m))
	for k, v := range m {
		subst[k] = v
	}
	return &Table{subst: subst}
}

var turkish = map[rune]string{
	'İ': "I", 'ı': "i",
	'Ş': "S", 'ş': "s",
	'Ç': "C", 'ç': "c",
	'Ğ': "G", 'ğ': "g",
}

var polish = map[rune]string{
	'Ą': "A", 'ą': "a",
	'Ć': "C", 'ć': "c",
	'Ę': "E", 'ę': "e",
	'Ł': "L", 'ł': "l",
	'Ń': "N", 'ń': "n",
	'Ó': "O", 'ó': "o",
	'Ś': "S", 'ś': "s",
	'Ź': "Z", 'ź': "z",
	'Ż': "Z", 'ż': "z",
}

var defaultTable = sync.OnceValue(func() *Table {
	merged := make(map[rune]string, len(turkish)+len(polish))
	for k, v := range turkish {
		merged[k] = v
	}
	for k, v := range polish {
		merged[k] = v
	}
	return &Table{subst: merged}
})

// Default returns the shared Turkish and Polish table.
func Default() *Table {
	return defaultTable()
}

// Apply replaces every mapped rune in s. Unmapped runes are kept.
func (t *Table) Apply(s string) string {
	if t == nil || len(t.subst) == 0 {
		return s
	}
	if !strings.ContainsFunc(s, t.has) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if sub, ok := t.subst[r]; ok {
			b.WriteString(sub)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lookup returns the substitute for r.
func (t *Table) Lookup(r rune) (string, bool) {
	if t == nil {
		return "", false
	}
	sub, ok := t.subst[r]
	return sub, ok
}

// Len is the number of mapped runes.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.subst)
}

func (t *Table) has(r rune) bool {
	_, ok := t.subst[r]
	return ok
}
