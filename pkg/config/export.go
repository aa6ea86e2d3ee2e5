package config

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml"
)

// TOML renders the config as a TOML document that Load reads back.
func (c *Config) TOML() ([]byte, error) {
	content, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to TOML: %w", err)
	}
	return content, nil
}

// DefaultFile returns the contents written by `pyprune config init`.
func DefaultFile() ([]byte, error) {
	content, err := DefaultConfig().TOML()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("# pyprune configuration\n")
	buf.WriteString("# Documentation: https://github.com/panbanda/pyprune\n\n")
	buf.Write(content)
	return buf.Bytes(), nil
}
