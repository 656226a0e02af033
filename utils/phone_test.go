package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneE164(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already international", "254712345678", "254712345678"},
		{"international with plus", "+254712345678", "254712345678"},
		{"international with spaces", "254 712 345 678", "254712345678"},
		{"local leading zero", "0712345678", "254712345678"},
		{"bare seven prefix", "712345678", "254712345678"},
		{"bare one prefix", "112345678", "254112345678"},
		{"thirteen digit international", "2547123456789", "2547123456789"},
		{"too short stays digits", "12345", "12345"},
		{"foreign number stays digits", "447700900123", "447700900123"},
		{"punctuation stripped", "(0712) 345-678", "254712345678"},
		{"empty", "", ""},
		{"no digits", "abc-", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhoneE164(tc.in))
		})
	}
}

func TestNormalizePhoneE164Idempotent(t *testing.T) {
	inputs := []string{"0712345678", "+254 712 345 678", "712345678", "garbage 99", ""}
	for _, in := range inputs {
		once := NormalizePhoneE164(in)
		assert.Equal(t, once, NormalizePhoneE164(once), "input %q", in)
	}
}

func TestToKenyanLocalPhone(t *testing.T) {
	assert.Equal(t, "0712345678", ToKenyanLocalPhone("254712345678"))
	assert.Equal(t, "0712345678", ToKenyanLocalPhone("0712345678"))
	assert.Equal(t, "447700900123", ToKenyanLocalPhone("447700900123"))
	assert.Equal(t, "", ToKenyanLocalPhone(""))
}

func TestLocalAndInternationalRoundTrip(t *testing.T) {
	e164 := NormalizePhoneE164("0712345678")
	local := ToKenyanLocalPhone(e164)
	assert.Equal(t, e164, NormalizePhoneE164(local))
}

func TestIsKenyanMobile(t *testing.T) {
	assert.True(t, IsKenyanMobile("0712345678"))
	assert.True(t, IsKenyanMobile("+254712345678"))
	assert.False(t, IsKenyanMobile("12345"))
	assert.False(t, IsKenyanMobile(""))
}
