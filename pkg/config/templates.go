package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateCatalog maps memo types to the document template tag used when rendering.
type TemplateCatalog struct {
	Default   string            `yaml:"default"`
	Templates map[string]string `yaml:"templates"`
}

// DefaultTemplateCatalog is used when no catalog file is configured.
func DefaultTemplateCatalog() TemplateCatalog {
	return TemplateCatalog{
		Default: "memo-general",
		Templates: map[string]string{
			"GENERAL":       "memo-general",
			"INSTRUCTIONAL": "memo-instructional",
			"INFORMATIONAL": "memo-informational",
		},
	}
}

// LoadTemplateCatalog reads a YAML catalog, falling back to defaults for missing entries.
func LoadTemplateCatalog(path string) (TemplateCatalog, error) {
	catalog := DefaultTemplateCatalog()
	if strings.TrimSpace(path) == "" {
		return catalog, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return catalog, fmt.Errorf("read template catalog: %w", err)
	}
	return ParseTemplateCatalog(raw)
}

// ParseTemplateCatalog decodes catalog YAML on top of the defaults.
func ParseTemplateCatalog(raw []byte) (TemplateCatalog, error) {
	catalog := DefaultTemplateCatalog()
	var parsed TemplateCatalog
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return catalog, fmt.Errorf("decode template catalog: %w", err)
	}
	if parsed.Default != "" {
		catalog.Default = parsed.Default
	}
	for memoType, tag := range parsed.Templates {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		catalog.Templates[strings.ToUpper(strings.TrimSpace(memoType))] = tag
	}
	return catalog, nil
}

// Lookup returns the template tag for the memo type.
func (c TemplateCatalog) Lookup(memoType string) string {
	if tag, ok := c.Templates[strings.ToUpper(memoType)]; ok {
		return tag
	}
	return c.Default
}
