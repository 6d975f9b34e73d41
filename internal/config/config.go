// Package config defines the recognized Options for opening a reactor
// agent and the strict YAML loader for its file-representable subset, per
// §6.5: "Recognized options (all others rejected)".
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/reactor/internal/actionrunner"
	"github.com/haasonsaas/reactor/internal/llm"
)

// ActionDefinitionOptions is the file-representable form of
// models.ActionDefinition.
type ActionDefinitionOptions struct {
	Description     string          `yaml:"description"`
	ParameterSchema json.RawMessage `yaml:"-"`
}

// fileActionDefinition is the literal YAML shape; ParameterSchema decodes
// to a generic value here and is re-marshaled to JSON afterward, since
// json.RawMessage does not implement yaml.Unmarshaler.
type fileActionDefinition struct {
	Description     string `yaml:"description"`
	ParameterSchema any    `yaml:"parameterSchema"`
}

// PersistenceOptions configures the persistence binding.
type PersistenceOptions struct {
	// Location is a store-specific address: a filesystem path for the
	// SQLite adapter, or a DSN for Postgres. Empty means in-memory.
	Location string `yaml:"location,omitempty"`

	// CreateIfMissing creates the backing store if it does not exist,
	// rather than treating a missing store as a fatal open-time error.
	CreateIfMissing bool `yaml:"createIfMissing,omitempty"`

	// Compression gzips the committed state blob.
	Compression bool `yaml:"compression,omitempty"`

	// DebounceDelayMs overrides the default 2000ms commit debounce.
	DebounceDelayMs int `yaml:"debounceDelay,omitempty"`
}

// DebounceDelay returns the configured debounce as a time.Duration, or the
// persistence package default when unset.
func (p PersistenceOptions) DebounceDelay(defaultDelay time.Duration) time.Duration {
	if p.DebounceDelayMs <= 0 {
		return defaultDelay
	}
	return time.Duration(p.DebounceDelayMs) * time.Millisecond
}

// ReactionOptions configures the Reaction runner's history window growth.
type ReactionOptions struct {
	InitialHistoryCount    int `yaml:"initialHistoryCount,omitempty"`
	AdditionalHistoryCount int `yaml:"additionalHistoryCount,omitempty"`
}

// fileOptions is the strict, YAML-decodable subset of Options: everything
// that can be expressed as data rather than as a function value.
type fileOptions struct {
	SystemPrompt      string                           `yaml:"systemPrompt"`
	ActionDefinitions map[string]fileActionDefinition `yaml:"actionDefinitions,omitempty"`
	Persistence       PersistenceOptions               `yaml:"persistence,omitempty"`
	Reaction          ReactionOptions                  `yaml:"reaction,omitempty"`
}

// Options are the recognized options for opening an agent, per §6.5. Think,
// Speak, and Act are supplied programmatically — they have no file
// representation — while everything else may be loaded from YAML via Load.
type Options struct {
	SystemPrompt      string
	ActionDefinitions map[string]ActionDefinitionOptions
	Persistence       PersistenceOptions
	Reaction          ReactionOptions

	Think llm.Think
	Speak llm.Speak
	Act   *actionrunner.Registry
}

// Validate enforces the required-field and cross-field invariants §6.5
// describes: systemPrompt is mandatory, and every actionDefinition must be
// reachable.
func (o Options) Validate() error {
	if o.SystemPrompt == "" {
		return fmt.Errorf("config: systemPrompt is required")
	}
	if o.Think == nil {
		return fmt.Errorf("config: think is required")
	}
	if o.Speak == nil {
		return fmt.Errorf("config: speak is required")
	}
	return nil
}

// Load reads path (YAML) into Options' file-representable fields, applying
// §6.5's documented defaults and rejecting unknown keys outright.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes is Load without a filesystem dependency, used directly by tests
// and by callers that already have the document in memory.
func LoadBytes(data []byte) (Options, error) {
	var fo fileOptions
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fo); err != nil {
		return Options{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return Options{}, fmt.Errorf("config: expected a single YAML document")
	}

	if fo.Reaction.InitialHistoryCount <= 0 {
		fo.Reaction.InitialHistoryCount = 10
	}
	if fo.Reaction.AdditionalHistoryCount <= 0 {
		fo.Reaction.AdditionalHistoryCount = 5
	}

	defs := make(map[string]ActionDefinitionOptions, len(fo.ActionDefinitions))
	for name, d := range fo.ActionDefinitions {
		schema, err := json.Marshal(d.ParameterSchema)
		if err != nil {
			return Options{}, fmt.Errorf("config: encode parameter schema for %q: %w", name, err)
		}
		defs[name] = ActionDefinitionOptions{Description: d.Description, ParameterSchema: schema}
	}

	return Options{
		SystemPrompt:      fo.SystemPrompt,
		ActionDefinitions: defs,
		Persistence:       fo.Persistence,
		Reaction:          fo.Reaction,
	}, nil
}
