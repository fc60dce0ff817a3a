package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "LAMPORT_"

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values; unknown keys are rejected. Durations take
// a Go duration or a bare number of milliseconds.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment without overriding variables that are already set. An empty
// path means ".env" in the working directory, which may be absent.
func LoadDotEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays LAMPORT_* variables onto cfg using lookup, which is
// usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("NODE_ID"); ok {
		cfg.NodeID = v
	}
	if v, ok := get("GROUP"); ok {
		cfg.Group = v
	}
	if v, ok := get("LISTEN"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := get("PEERS"); ok {
		peers, err := ParsePeers(v)
		if err != nil {
			return fmt.Errorf("%sPEERS: %w", EnvPrefix, err)
		}
		cfg.Peers = peers
	}
	if v, ok := get("MEAN_WAIT"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sMEAN_WAIT: %w", EnvPrefix, err)
		}
		cfg.MeanWait = d
	}
	if v, ok := get("SEND_TIMEOUT"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSEND_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.SendTimeout = d
	}
	if v, ok := get("CODEC"); ok {
		cfg.Codec = v
	}
	if v, ok := get("JOURNAL"); ok {
		cfg.JournalPath = v
	}
	if v, ok := get("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", EnvPrefix, err)
		}
		cfg.Debug = b
	}
	return nil
}

// ParseDuration accepts a Go duration ("5s", "250ms") or a bare number of
// milliseconds ("5000").
func ParseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// fileKeys are the top-level keys a config file may set besides the
// durations handled by UnmarshalYAML.
var fileKeys = map[string]bool{
	"node_id": true,
	"group":   true,
	"listen":  true,
	"peers":   true,
	"codec":   true,
	"journal": true,
	"debug":   true,
}

// UnmarshalYAML decodes a config mapping. Durations go through
// ParseDuration so "mean_wait: 5000" means 5000ms, like the environment and
// the flags. Unknown keys are rejected.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: config must be a mapping", value.Line)
	}

	rest := &yaml.Node{Kind: yaml.MappingNode, Tag: value.Tag, Line: value.Line, Column: value.Column}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "mean_wait":
			d, err := decodeDuration(key, val)
			if err != nil {
				return err
			}
			c.MeanWait = d
		case "send_timeout":
			d, err := decodeDuration(key, val)
			if err != nil {
				return err
			}
			c.SendTimeout = d
		default:
			if !fileKeys[key.Value] {
				return fmt.Errorf("line %d: unknown config key %q", key.Line, key.Value)
			}
			rest.Content = append(rest.Content, key, val)
		}
	}

	type plain Config
	return rest.Decode((*plain)(c))
}

func decodeDuration(key, val *yaml.Node) (time.Duration, error) {
	if val.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: %s must be a duration", val.Line, key.Value)
	}
	d, err := ParseDuration(val.Value)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", val.Line, key.Value, err)
	}
	return d, nil
}
