package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Saver writes values to the global or local config file.
type Saver struct {
	// GlobalPath is the global config file. Empty disables SaveGlobal.
	GlobalPath string

	// LocalPath is the local config file. Empty disables SaveLocal.
	LocalPath string

	// ValidKeys lists keys that may be saved. If nil, all keys are valid.
	ValidKeys []string
}

// NewSaver returns a Saver writing to the files r reads.
func NewSaver(r *Resolver) Saver {
	return Saver{
		GlobalPath: r.GlobalPath(),
		LocalPath:  r.LocalPath(),
		ValidKeys:  r.config.ValidKeys,
	}
}

// SaveGlobal saves a key-value pair to the global config file. The file is
// private to the user since it may hold credentials.
func (s Saver) SaveGlobal(key, value string) error {
	if s.GlobalPath == "" {
		return fmt.Errorf("global config path not configured")
	}
	if err := s.validate(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.GlobalPath), 0o700); err != nil {
		return err
	}
	return update(s.GlobalPath, 0o600, func(m map[string]interface{}) {
		m[key] = parseValue(value)
	})
}

// SaveLocal saves a key-value pair to the local config file.
func (s Saver) SaveLocal(key, value string) error {
	if s.LocalPath == "" {
		return fmt.Errorf("local config path not configured (no git root found)")
	}
	if err := s.validate(key); err != nil {
		return err
	}
	if IsSecret(key) {
		return fmt.Errorf("%s is a credential; store it in the global config or the environment", key)
	}
	// Local config is shared and should be readable
	return update(s.LocalPath, 0o644, func(m map[string]interface{}) {
		m[key] = parseValue(value)
	})
}

// DeleteGlobalKey removes a key from the global config.
func (s Saver) DeleteGlobalKey(key string) error {
	if s.GlobalPath == "" {
		return fmt.Errorf("global config path not configured")
	}
	if _, err := os.Stat(s.GlobalPath); err != nil {
		return nil // nothing to delete
	}
	return update(s.GlobalPath, 0o600, func(m map[string]interface{}) {
		delete(m, key)
	})
}

func (s Saver) validate(key string) error {
	if len(s.ValidKeys) > 0 && !slices.Contains(s.ValidKeys, key) {
		return fmt.Errorf("unknown config key: %s\n\nValid keys: %s", key, strings.Join(s.ValidKeys, ", "))
	}
	return nil
}

// update applies fn to the YAML map stored at path and writes it back.
func update(path string, perm os.FileMode, fn func(map[string]interface{})) error {
	var existing map[string]interface{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if existing == nil {
		existing = make(map[string]interface{})
	}

	fn(existing)

	data, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

// parseValue converts string values to appropriate types for YAML.
func parseValue(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	for _, suffix := range []string{"_api_key", "_token", "_secret", "_hash", "_uri"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// Mask hides all but the last four characters of a credential.
func Mask(key, value string) string {
	if value == "" || !IsSecret(key) {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
