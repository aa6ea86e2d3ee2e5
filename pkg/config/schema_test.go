package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCompiles(t *testing.T) {
	sch, err := Schema()
	require.NoError(t, err)
	assert.NotNil(t, sch)
	assert.Contains(t, string(SchemaJSON()), "ignore_modules")
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{
			name:    "valid toml",
			file:    "pyprune.toml",
			content: "[check]\nignore_modules = [\"six\"]\n\n[cache]\nttl = 0\n",
		},
		{
			name:    "valid yaml",
			file:    "pyprune.yaml",
			content: "output:\n  format: toon\n",
		},
		{
			name:    "unknown section",
			file:    "pyprune.toml",
			content: "[analysis]\ncomplexity = true\n",
			wantErr: true,
		},
		{
			name:    "unknown key",
			file:    "pyprune.json",
			content: `{"check": {"ignore": ["six"]}}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			file:    "pyprune.toml",
			content: "[check]\nrespect_noqa = \"yes\"\n",
			wantErr: true,
		},
		{
			name:    "negative ttl",
			file:    "pyprune.yaml",
			content: "cache:\n  ttl: -1\n",
			wantErr: true,
		},
		{
			name:    "unknown format",
			file:    "pyprune.toml",
			content: "[output]\nformat = \"html\"\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ValidateFile(writeConfig(t, tt.file, tt.content))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg)
		})
	}
}

func TestDefaultFileRoundTrips(t *testing.T) {
	content, err := DefaultFile()
	require.NoError(t, err)
	assert.Contains(t, string(content), "# pyprune configuration")

	path := writeConfig(t, "pyprune.toml", string(content))
	cfg, err := ValidateFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
