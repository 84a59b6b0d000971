package qr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawpals/pawpark/internal/qr"
)

const code = "670f1234567890abcdef1234"

func TestParse_AllFormatsResolveSameCode(t *testing.T) {
	cases := map[string]struct {
		raw    string
		source qr.Format
	}{
		"json":   {`{"gardenId":"` + code + `","gardenName":"Rose Garden","type":"garden"}`, qr.FormatJSON},
		"url":    {"https://app.pawpals.example/gardens/" + code, qr.FormatURL},
		"scheme": {"pawpals:garden:" + code, qr.FormatScheme},
		"bare":   {code, qr.FormatBare},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := qr.Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, code, p.GardenCode)
			assert.Equal(t, tc.source, p.Source)
		})
	}
}

func TestParse_JSONCarriesGardenName(t *testing.T) {
	p, err := qr.Parse(`{"gardenId":"` + code + `","gardenName":"Rose Garden"}`)
	require.NoError(t, err)
	assert.Equal(t, "Rose Garden", p.GardenName)
}

func TestParse_UppercaseCodeIsNormalized(t *testing.T) {
	p, err := qr.Parse("670F1234567890ABCDEF1234")
	require.NoError(t, err)
	assert.Equal(t, code, p.GardenCode)
}

func TestParse_URLTrailingSlash(t *testing.T) {
	p, err := qr.Parse("https://app.pawpals.example/gardens/" + code + "/")
	require.NoError(t, err)
	assert.Equal(t, code, p.GardenCode)
}

func TestParse_Garbage(t *testing.T) {
	for _, raw := range []string{
		"just some random text",
		"",
		"   ",
		"670f1234",                                // too short
		code + "ff",                               // too long
		"670g1234567890abcdef1234",                // non-hex
		`{"name":"no garden id here"}`,            // JSON without gardenId
		`{"gardenId":""}`,                         // empty gardenId
		"{not valid json",                         // malformed JSON
		"ftp://app.pawpals.example/gardens/" + code, // unsupported scheme
		"https://app.pawpals.example/",            // URL without segment
		"pawpals:garden:",                         // scheme without code
		"pawpals:visit:" + code,                   // wrong scheme subject
	} {
		_, err := qr.Parse(raw)
		assert.ErrorIs(t, err, qr.ErrUnrecognizedPayload, "raw=%q", raw)
	}
}

func TestParse_SchemeAndBareAgree(t *testing.T) {
	a, err := qr.Parse("pawpals:garden:" + code)
	require.NoError(t, err)
	b, err := qr.Parse(code)
	require.NoError(t, err)
	assert.Equal(t, a.GardenCode, b.GardenCode)
}
