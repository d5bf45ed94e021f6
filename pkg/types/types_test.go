package types

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	fp := NewFingerprint("https://example.com/x")
	assert.Equal(t, "VM749C8/Ma00kHUCLNNs4aN40DnB33r0XWHWk9mjXGo=", fp.String())

	// The string is hashed as found, without normalisation
	assert.NotEqual(t, fp, NewFingerprint("https://example.com/x/"))
	assert.NotEqual(t, fp, NewFingerprint("HTTPS://example.com/x"))
}

func TestCandidateURL(t *testing.T) {
	u, err := url.Parse("https://example.com:8443/page")
	require.NoError(t, err)

	c := CandidateURL{Raw: "https://example.com:8443/page", URL: u}
	assert.Equal(t, "example.com", c.Host())
	assert.Equal(t, NewFingerprint(c.Raw), c.Fingerprint())

	assert.Equal(t, "", CandidateURL{Raw: "x"}.Host())
}

func TestCandidateURLHostCanonical(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://Example.com/x", "example.com"},
		{"https://EXAMPLE.COM:443/x", "example.com"},
		{"https://example.com./x", "example.com"},
		{"http://192.168.1.1./x", "192.168.1.1"},
		{"http://[FE80::1]/", "fe80::1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			c := CandidateURL{Raw: tt.raw, URL: u}
			assert.Equal(t, tt.want, c.Host())
			assert.Equal(t, NewFingerprint(tt.raw), c.Fingerprint(), "fingerprint uses the raw string")
		})
	}
}

func TestResultTotalRejected(t *testing.T) {
	r := NewResult()
	assert.Equal(t, 0, r.TotalRejected())

	r.Rejected[ReasonDuplicate] = 2
	r.Rejected[ReasonPrivateAddress] = 1
	assert.Equal(t, 3, r.TotalRejected())
}
