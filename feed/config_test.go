package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFormats(t *testing.T) {
	want := Config{Codes: []string{"005930", "000660"}, Market: "KRX", Interval: "1s", Retries: 2, Seed: 9}

	tests := []struct {
		name string
		body string
	}{
		{"feed.yaml", "codes: [\"005930\", \"000660\"]\nmarket: KRX\ninterval: 1s\nretries: 2\nseed: 9\n"},
		{"feed.json", `{"codes":["005930","000660"],"market":"KRX","interval":"1s","retries":2,"seed":9}`},
		{"feed.toml", "codes = [\"005930\", \"000660\"]\nmarket = \"KRX\"\ninterval = \"1s\"\nretries = 2\nseed = 9\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.name, tt.body))
			require.NoError(t, err)
			assert.Equal(t, want, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "feed.ini", "codes=A"))
	assert.ErrorContains(t, err, "unsupported config extension")

	_, err = Load(writeFile(t, "feed.json", "{"))
	assert.ErrorContains(t, err, "parse")
}

func TestNormalize(t *testing.T) {
	cfg := Config{Codes: []string{" aapl ", "", "msft"}}.Normalize()

	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Codes)
	assert.Equal(t, "KRX", cfg.Market)
	assert.Equal(t, "2s", cfg.Interval)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.Period())
}

func TestNormalizeRetriesFloor(t *testing.T) {
	for _, n := range []int{0, -1} {
		cfg := Config{Codes: []string{"A"}, Retries: n}.Normalize()
		assert.Equal(t, 3, cfg.Retries, "retries %d", n)
	}
	assert.Equal(t, 1, Config{Codes: []string{"A"}, Retries: 1}.Normalize().Retries)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Config{Interval: "1s"}.Validate(), ErrNoCodes)
	assert.Error(t, Config{Codes: []string{"A"}, Interval: "fast"}.Validate())
	assert.Error(t, Config{Codes: []string{"A"}, Interval: "-1s"}.Validate())
	assert.NoError(t, Config{Codes: []string{"A"}, Interval: "500ms"}.Validate())
}
