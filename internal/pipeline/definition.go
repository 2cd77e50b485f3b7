// Package pipeline builds a dependency graph from a declarative cascade
// definition: an ordered list of named stages that may hand off to declared
// successors, reference other stages' outputs or top-level inputs in free
// text, and import conversational context from other stages.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageDef is one stage as declared in a cascade definition.
type StageDef struct {
	// Name uniquely identifies the stage within the cascade.
	Name string `yaml:"name"`

	// Successors lists stages that run after this one (explicit handoff).
	Successors []string `yaml:"successors,omitempty"`

	// Context declares which stages' context this stage imports.
	Context ContextDef `yaml:"context,omitempty"`

	// Instructions is the free-text prompt for the stage. It may reference
	// other stages' outputs (outputs.NAME) or top-level inputs (input.NAME).
	Instructions string `yaml:"instructions,omitempty"`

	// Code is an optional code blob, scanned for references like Instructions.
	Code string `yaml:"code,omitempty"`
}

// ContextDef declares explicit context imports for a stage.
type ContextDef struct {
	From []string `yaml:"from,omitempty"`
}

// Definition is a full cascade definition in declaration order.
type Definition struct {
	// Name is an optional display name for the cascade.
	Name string `yaml:"name,omitempty"`

	// Inputs optionally pre-declares top-level input parameters. Inputs
	// referenced from stage text but not declared here are still registered,
	// in first-seen order after the declared ones.
	Inputs []string `yaml:"inputs,omitempty"`

	// Stages is the ordered stage list.
	Stages []StageDef `yaml:"stages"`
}

// LoadDefinition reads and decodes a cascade definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes a cascade definition from YAML bytes and validates
// stage names.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks that every stage has a unique, non-empty name.
func (d *Definition) Validate() error {
	seen := make(map[string]bool, len(d.Stages))
	for i, s := range d.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
