package wr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`a\b`, `a\\b`},
		{"<x>", `\<x\>`},
		{`\<`, `\\\<`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Fatalf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	values := []string{
		"hello", `back\slash`, "<TBL>", `\\>><<\`, `ends with \`, "ümlaut €", "",
	}
	for _, v := range values {
		escaped := Escape(v)
		assert.Equal(t, v, Unescape(escaped), "value %q", v)
		for i := 0; i < len(escaped); i++ {
			if escaped[i] == '<' || escaped[i] == '>' {
				require.True(t, i > 0 && escaped[i-1] == '\\', "unescaped bracket in %q", escaped)
			}
		}
	}
}

func TestUnescapeKeepsUnknownSequences(t *testing.T) {
	assert.Equal(t, `a\;b`, Unescape(`a\;b`))
	assert.Equal(t, `tail\`, Unescape(`tail\`))
}

func TestPacketLayout(t *testing.T) {
	got := NewPacket("GET_CUSTOMER", "1.10").
		Pair("email_address", "a@gmx.de").
		Pair("password", "p<w>").
		Pair("gmx", "1").
		String()
	want := `<WR TYPE="RQST" NAME="GET_CUSTOMER" VER="1.10" PROGVER="1.13.03">` +
		`email_address=a@gmx.de\ppassword=p\<w\>\pgmx=1\p</WR>`
	assert.Equal(t, want, got)
}

func TestReceiverTable(t *testing.T) {
	got := ReceiverTable([]string{"+491701234567", "+4915112345"})
	want := `<TBL ROWS="2" COLS="3">receiver_id\;receiver_name\;receiver_number\;` +
		`1\;null\;+491701234567\;2\;null\;+4915112345\;</TBL>`
	assert.Equal(t, want, got)
}

func TestDecode(t *testing.T) {
	body := `<WR TYPE="RSPNS" NAME="GET_SMS_CREDITS">rslt=0\pfree_rem_month=7\pfree_max_month=50\p</WR>`
	fields, err := Decode(body)
	require.NoError(t, err)

	code, err := fields.ResultCode()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	v, ok := fields.Get("free_rem_month")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	assert.Equal(t, []string{"rslt", "free_rem_month", "free_max_month"}, fields.Keys())
	assert.NotContains(t, fields.Raw(), "</WR>")
}

func TestDecodeLastFieldWithoutTerminator(t *testing.T) {
	fields, err := Decode(`rslt=0\pfree_rem_month=12`)
	require.NoError(t, err)
	v, ok := fields.Get("free_rem_month")
	require.True(t, ok)
	assert.Equal(t, "12", v)
}

func TestDecodeFirstOccurrenceWins(t *testing.T) {
	fields, err := Decode(`rslt=0\pcustomer_id=1\pcustomer_id=2\p`)
	require.NoError(t, err)
	v, _ := fields.Get("customer_id")
	assert.Equal(t, "1", v)
}

func TestDecodeWithoutResultCode(t *testing.T) {
	_, err := Decode(`<WR>outp=nothing</WR>`)
	require.Error(t, err)
}

func TestResultCodeInvalid(t *testing.T) {
	fields, err := Decode(`rslt=abc\p`)
	require.NoError(t, err)
	_, err = fields.ResultCode()
	require.Error(t, err)

	fields, err = Decode(`rslt=\p`)
	require.NoError(t, err)
	_, err = fields.ResultCode()
	require.Error(t, err)
}

func TestBodyCharset(t *testing.T) {
	encoded := EncodeBody("Grüße €")
	assert.Equal(t, []byte{'G', 'r', 0xfc, 0xdf, 'e', ' ', 0xa4}, encoded)

	assert.Equal(t, []byte("a?b"), EncodeBody("a漢b"))

	decoded, err := DecodeBody(encoded)
	require.NoError(t, err)
	assert.Equal(t, "Grüße €", decoded)
	assert.True(t, strings.HasPrefix(decoded, "Gr"))
}
