// Package wr implements the legacy WR gateway protocol: escaped key/value
// packets posted to a rotating set of hosts.
package wr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	// ProgramVersion is announced in every packet header.
	ProgramVersion = "1.13.03"

	pairTerminator = `\p`
	cellSeparator  = `\;`
	closeTag       = "</WR>"
	resultKey      = "rslt"
)

// Escape applies the value escape rules: backslash first, then angle brackets.
func Escape(value string) string {
	if !strings.ContainsAny(value, `\<>`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 8)
	for _, r := range value {
		switch r {
		case '\\', '<', '>':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unescape reverses Escape. A backslash not followed by one of the escaped
// characters is kept literally.
func Unescape(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\\' && i+1 < len(value) {
			switch value[i+1] {
			case '\\', '<', '>':
				b.WriteByte(value[i+1])
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Packet builds a request body.
type Packet struct {
	b strings.Builder
}

// NewPacket opens a request packet named name with protocol version ver.
func NewPacket(name, ver string) *Packet {
	p := &Packet{}
	fmt.Fprintf(&p.b, `<WR TYPE="RQST" NAME="%s" VER="%s" PROGVER="%s">`, name, ver, ProgramVersion)
	return p
}

// Pair appends key=value with the value escaped and terminated.
func (p *Packet) Pair(key, value string) *Packet {
	p.b.WriteString(key)
	p.b.WriteByte('=')
	p.b.WriteString(Escape(value))
	p.b.WriteString(pairTerminator)
	return p
}

// String closes the packet and returns the body text.
func (p *Packet) String() string {
	return p.b.String() + closeTag
}

// ReceiverTable renders the receivers value of a SEND_SMS packet.
func ReceiverTable(numbers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<TBL ROWS="%d" COLS="3">`, len(numbers))
	b.WriteString("receiver_id" + cellSeparator + "receiver_name" + cellSeparator + "receiver_number" + cellSeparator)
	for i, n := range numbers {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(cellSeparator)
		b.WriteString("null")
		b.WriteString(cellSeparator)
		b.WriteString(n)
		b.WriteString(cellSeparator)
	}
	b.WriteString("</TBL>")
	return b.String()
}

// Fields are the decoded response pairs.
type Fields struct {
	raw    string
	values map[string]string
	order  []string
}

// Decode extracts the response pairs starting at the result code. It fails
// when the body carries no result code.
func Decode(body string) (Fields, error) {
	i := strings.Index(body, resultKey+"=")
	if i < 0 {
		return Fields{}, fmt.Errorf("wr: no %s field in response", resultKey)
	}
	out := strings.ReplaceAll(body[i:], pairTerminator, "\n")
	out = strings.ReplaceAll(out, closeTag, "")

	f := Fields{raw: out, values: make(map[string]string)}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		if _, seen := f.values[key]; seen {
			continue
		}
		f.values[key] = strings.TrimRight(value, "\r")
		f.order = append(f.order, key)
	}
	return f, nil
}

// Get returns the value of name. An empty value counts as absent.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f.values[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ResultCode parses the rslt field.
func (f Fields) ResultCode() (int, error) {
	v, ok := f.Get(resultKey)
	if !ok {
		return 0, fmt.Errorf("wr: empty %s field", resultKey)
	}
	code, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("wr: invalid %s %q: %w", resultKey, v, err)
	}
	return code, nil
}

// Raw is the decoded payload, used in error reports.
func (f Fields) Raw() string {
	return f.raw
}

// Map copies the fields.
func (f Fields) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Keys lists field names in response order.
func (f Fields) Keys() []string {
	return append([]string(nil), f.order...)
}

var latin9 = charmap.ISO8859_15

// EncodeBody converts text to ISO-8859-15. Runes outside the charset are
// sent as '?'.
func EncodeBody(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := latin9.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// DecodeBody converts an ISO-8859-15 response body to UTF-8.
func DecodeBody(data []byte) (string, error) {
	out, err := latin9.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("wr: decode body: %w", err)
	}
	return string(out), nil
}
