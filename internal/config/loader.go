package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://kbswitchd.local/config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// format is a configuration file syntax.
type format int

const (
	formatUnknown format = iota
	formatTOML
	formatJSON
	formatYAML
)

func (f format) String() string {
	switch f {
	case formatTOML:
		return "TOML"
	case formatJSON:
		return "JSON"
	case formatYAML:
		return "YAML"
	default:
		return "unknown"
	}
}

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatUnknown
	}
}

// Load reads, checks and validates the configuration at path. A missing or
// invalid file is an error: the daemon cannot run without a trigger key and
// a layout switch combo. Environment overrides are applied before
// validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// parse decodes a configuration document over the defaults. The document is
// checked against the embedded JSON schema first, so unknown keys and wrong
// types are rejected before decoding.
func parse(data []byte, f format) (*Config, error) {
	if f == formatUnknown {
		detected, err := detectFormat(data)
		if err != nil {
			return nil, err
		}
		f = detected
	}

	doc, err := decodeDocument(data, f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch f {
	case formatTOML:
		_, err = toml.Decode(string(data), cfg)
	case formatJSON:
		err = json.Unmarshal(data, cfg)
	case formatYAML:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return cfg, nil
}

// detectFormat tries TOML, then JSON, then YAML.
func detectFormat(data []byte) (format, error) {
	for _, f := range []format{formatTOML, formatJSON, formatYAML} {
		doc, err := decodeDocument(data, f)
		if err != nil {
			continue
		}
		if _, ok := doc.(map[string]any); ok {
			return f, nil
		}
	}
	return formatUnknown, fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// decodeDocument parses data into generic JSON values. TOML and YAML
// results go through a JSON round trip so numbers and maps take the forms
// the schema validator understands.
func decodeDocument(data []byte, f format) (any, error) {
	var raw any
	switch f {
	case formatTOML:
		m := map[string]any{}
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, err
		}
		raw = m
	case formatJSON:
		// Decoded directly below.
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]any{}
		}
	default:
		return nil, fmt.Errorf("unsupported format")
	}

	if f != formatJSON {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		data = b
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func checkSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
