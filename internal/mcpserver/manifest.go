package mcpserver

import (
	"encoding/json"
	"strings"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	// publisherKey holds publisher metadata inside _meta.
	publisherKey = "io.modelcontextprotocol.registry/publisher-provided"
)

// Manifest is the server.json document an MCP registry lists pyprune by.
type Manifest struct {
	Schema      string         `json:"$schema"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Repository  *Repository    `json:"repository,omitempty"`
	Packages    []Package      `json:"packages,omitempty"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// Repository contains source repository information.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package runs the server from the container image.
type Package struct {
	RegistryType         string        `json:"registryType"`
	Identifier           string        `json:"identifier"`
	PackageArguments     []Argument    `json:"packageArguments,omitempty"`
	EnvironmentVariables []Environment `json:"environmentVariables,omitempty"`
	Transport            Transport     `json:"transport"`
}

// Argument represents a command-line argument.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Environment is a variable the server reads at startup.
type Environment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// Transport describes the communication method.
type Transport struct {
	Type string `json:"type"`
}

// Capabilities lists what the server offers, as published under _meta.
type Capabilities struct {
	Tools   []Capability `json:"tools"`
	Prompts []Capability `json:"prompts"`
}

// Capability summarizes one tool or prompt.
type Capability struct {
	Name      string   `json:"name"`
	Summary   string   `json:"summary"`
	Arguments []string `json:"arguments,omitempty"`
	ReadOnly  bool     `json:"readOnly,omitempty"`
}

// capabilities describes the registered tools and embedded prompts. Neither
// tool writes files.
func capabilities() Capabilities {
	caps := Capabilities{Tools: []Capability{}, Prompts: []Capability{}}
	for _, tool := range tools() {
		caps.Tools = append(caps.Tools, Capability{
			Name:      tool.Name,
			Summary:   firstLine(tool.Description),
			Arguments: []string{"paths", "format", "ignore_modules"},
			ReadOnly:  true,
		})
	}
	for _, p := range prompts() {
		c := Capability{Name: p.prompt.Name, Summary: p.prompt.Description}
		for _, arg := range p.prompt.Arguments {
			c.Arguments = append(c.Arguments, arg.Name)
		}
		caps.Prompts = append(caps.Prompts, c)
	}
	return caps
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// GenerateManifest renders server.json for the given release. The image
// runs "pyprune mcp"; PYPRUNE_CONFIG may point it at a config file.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	manifest := Manifest{
		Schema:      manifestSchema,
		Name:        "io.github.panbanda/pyprune",
		Title:       "pyprune",
		Description: "Finds and previews removal of unused imports in Python code",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/pyprune",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType:     "oci",
				Identifier:       "ghcr.io/panbanda/pyprune:" + version,
				PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
				EnvironmentVariables: []Environment{
					{Name: "PYPRUNE_CONFIG", Description: "Path to a pyprune config file (TOML, YAML, or JSON)"},
				},
				Transport: Transport{Type: "stdio"},
			},
		},
		Meta: map[string]any{publisherKey: capabilities()},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
