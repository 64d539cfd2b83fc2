package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "ASKDB_"

// FileLookup reads a YAML document and exposes it under the same keys as the
// environment. Nested mappings are joined with underscores, so
//
//	oracle:
//	  model: llama3
//
// resolves ASKDB_ORACLE_MODEL. Top-level keys already carrying the ASKDB_
// prefix are used verbatim.
func FileLookup(path string) (LookupFunc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	values, err := parseYAMLValues(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return MapLookup(values), nil
}

func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// ChainLookup returns the first hit across lookups in order.
func ChainLookup(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if value, ok := lookup(key); ok {
				return value, true
			}
		}
		return "", false
	}
}

func parseYAMLValues(raw []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := flattenYAML("", doc, values); err != nil {
		return nil, err
	}
	return values, nil
}

func flattenYAML(prefix string, node map[string]any, out map[string]string) error {
	keys := make([]string, 0, len(node))
	for key := range node {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
		if prefix != "" {
			name = prefix + "_" + name
		} else if !strings.HasPrefix(name, envPrefix) {
			name = envPrefix + name
		}

		switch typed := node[key].(type) {
		case map[string]any:
			if err := flattenYAML(name, typed, out); err != nil {
				return err
			}
		case []any:
			parts := make([]string, 0, len(typed))
			for _, item := range typed {
				parts = append(parts, fmt.Sprint(item))
			}
			out[name] = strings.Join(parts, "|")
		case nil:
			out[name] = ""
		default:
			out[name] = fmt.Sprint(typed)
		}
	}
	return nil
}
