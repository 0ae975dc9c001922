package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.NotEmpty(t, cfg.Port)
	assert.NotEmpty(t, cfg.DBPath)
	assert.True(t, cfg.StopOnError)
	assert.Empty(t, cfg.MadaraSources)
	require.NoError(t, cfg.Validate())
}

func TestLoadMadaraSources(t *testing.T) {
	t.Setenv("MADARA_SOURCES", "100|Asura Scans|https://asura.example, 200|Flame Comics|https://flame.example")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.MadaraSources, 2)
	assert.Equal(t, MadaraSource{ID: 100, Name: "Asura Scans", BaseURL: "https://asura.example"}, cfg.MadaraSources[0])
	assert.Equal(t, MadaraSource{ID: 200, Name: "Flame Comics", BaseURL: "https://flame.example"}, cfg.MadaraSources[1])
}

func TestLoadMadaraSourcesMalformed(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"missing fields", "100|OnlyName"},
		{"non-numeric id", "abc|Name|https://x.example"},
		{"empty name", "100||https://x.example"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MADARA_SOURCES", tc.value)
			cfg := Load()
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "MADARA_SOURCES")
			assert.Empty(t, cfg.MadaraSources)
		})
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "99999")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}
