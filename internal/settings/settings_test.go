package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestProviderLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, `
merchant_id: merchant-1
merchant_name: Dev Store
bearer_token: secret
min_topup: "2.50"
max_topup: "100"
`)

	p, err := NewProvider(path)
	require.NoError(t, err)

	s := p.Current()
	require.Equal(t, "merchant-1", s.MerchantID)
	require.Equal(t, "Dev Store", s.MerchantName)
	require.Equal(t, "secret", s.BearerToken)
	require.True(t, s.MinTopup.Equal(decimal.RequireFromString("2.50")))
	require.True(t, s.MaxTopup.Equal(decimal.RequireFromString("100")))
}

func TestProviderDefaultsBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, "merchant_id: merchant-1\n")

	p, err := NewProvider(path)
	require.NoError(t, err)

	s := p.Current()
	require.True(t, s.MinTopup.Equal(defaultMinTopup))
	require.True(t, s.MaxTopup.Equal(defaultMaxTopup))
}

func TestProviderRejectsBadFile(t *testing.T) {
	dir := t.TempDir()

	_, err := NewProvider(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeSettings(t, bad, "min_topup: \"abc\"\n")
	_, err = NewProvider(bad)
	require.Error(t, err)

	inverted := filepath.Join(dir, "inverted.yaml")
	writeSettings(t, inverted, "min_topup: \"100\"\nmax_topup: \"1\"\n")
	_, err = NewProvider(inverted)
	require.Error(t, err)
}

func TestProviderHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, "merchant_id: before\n")

	p, err := NewProvider(path)
	require.NoError(t, err)
	require.Equal(t, "before", p.Current().MerchantID)

	writeSettings(t, path, "merchant_id: after\n")
	// Force a newer mtime in case the writes land in the same tick.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Equal(t, "after", p.Current().MerchantID)
}

func TestProviderKeepsLastGoodOnBadEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, "merchant_id: good\n")

	p, err := NewProvider(path)
	require.NoError(t, err)

	writeSettings(t, path, "min_topup: \"abc\"\n")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Equal(t, "good", p.Current().MerchantID)
}
