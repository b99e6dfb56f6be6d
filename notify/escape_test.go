package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeSpecials(t *testing.T) {
	cases := map[string]string{
		"plain":               "plain",
		"v1.5.7":              "v1\\.5\\.7",
		"SUKI-SUSFS-BBG":      "SUKI\\-SUSFS\\-BBG",
		"a_b*c":               "a\\_b\\*c",
		"(1+1)=2!":            "\\(1\\+1\\)\\=2\\!",
		"[link](url)":         "\\[link\\]\\(url\\)",
		"back\\slash":         "back\\\\slash",
		"pipe|brace{x}tilde~": "pipe\\|brace\\{x\\}tilde\\~",
		"`code` #tag >quote":  "\\`code\\` \\#tag \\>quote",
	}
	for in, want := range cases {
		assert.Equal(t, want, Escape(in), "input %q", in)
	}
}

func TestEscapeIsStableOnCleanText(t *testing.T) {
	clean := "Kernel build finished for gki arm64"
	assert.Equal(t, clean, Escape(clean))
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	n := NewTelegram("", "")
	assert.False(t, n.Enabled())
	assert.NoError(t, n.SendMessage("ignored"))
	assert.NoError(t, n.UploadFile("/nonexistent", "ignored"))
}
