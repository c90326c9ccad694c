package dedup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	a := Fingerprint("APT29 returns", "https://example.com/a", "body")
	b := Fingerprint("APT29 returns", "https://example.com/a", "body")
	require.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintCaseAndWhitespaceInsensitive(t *testing.T) {
	t.Parallel()

	base := Fingerprint("Lateral Movement via WMI", "https://Example.com/Post", "PowerShell was used")
	assert.Equal(t, base, Fingerprint("LATERAL MOVEMENT VIA WMI", "https://Example.com/Post", "PowerShell was used"))
	assert.Equal(t, base, Fingerprint("  lateral movement via wmi \n", " https://example.com/post", "powershell WAS used  "))
}

func TestFingerprintOnlyUsesContentPrefix(t *testing.T) {
	t.Parallel()

	head := strings.Repeat("a", 500)
	one := Fingerprint("t", "u", head+" first tail")
	two := Fingerprint("t", "u", head+" second tail")
	assert.Equal(t, one, two)

	assert.NotEqual(t, one, Fingerprint("t", "u", strings.Repeat("b", 500)))
}

func TestFingerprintPrefixCountsRunes(t *testing.T) {
	t.Parallel()

	head := strings.Repeat("é", 500)
	assert.Equal(t, Fingerprint("t", "u", head), Fingerprint("t", "u", head+"ü"))
	assert.Equal(t, head, prefix(head+"ü", 500))
	assert.Equal(t, "abc", prefix("abc", 500))
}

func TestFingerprintEmptyContent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Fingerprint("t", "u", ""), Fingerprint("T", "U", "   "))
}
