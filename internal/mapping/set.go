package mapping

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Set is an editable, ordered collection of mappings keyed by source column.
type Set struct {
	items []model.ColumnMapping
	index map[string]int
}

// NewSet validates mappings and returns a Set. Sources must be unique and
// targets must be known fields or ignore.
func NewSet(mappings []model.ColumnMapping) (*Set, error) {
	s := &Set{index: make(map[string]int, len(mappings))}
	for _, m := range mappings {
		if m.Source == "" {
			return nil, fmt.Errorf("mapping with empty source column")
		}
		if _, dup := s.index[m.Source]; dup {
			return nil, fmt.Errorf("duplicate source column %q", m.Source)
		}
		if !model.IsTarget(m.Target) {
			return nil, fmt.Errorf("column %q: unknown target %q", m.Source, m.Target)
		}
		if m.Confidence < 0 || m.Confidence > 1 {
			return nil, fmt.Errorf("column %q: confidence %v outside [0,1]", m.Source, m.Confidence)
		}
		s.index[m.Source] = len(s.items)
		s.items = append(s.items, m)
	}
	return s, nil
}

// Reassign points source at a new target. Choosing ignore resets confidence to 1.
func (s *Set) Reassign(source, target string) error {
	i, ok := s.index[source]
	if !ok {
		return fmt.Errorf("unknown source column %q", source)
	}
	if !model.IsTarget(target) {
		return fmt.Errorf("column %q: unknown target %q", source, target)
	}
	s.items[i].Target = target
	if target == model.TargetIgnore {
		s.items[i].Confidence = ConfidenceExact
	}
	return nil
}

// Apply reassigns every source in overrides (source -> target), in sorted source order.
func (s *Set) Apply(overrides map[string]string) error {
	sources := make([]string, 0, len(overrides))
	for src := range overrides {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		if err := s.Reassign(src, overrides[src]); err != nil {
			return err
		}
	}
	return nil
}

// Mappings returns a copy of the mappings in their original order.
func (s *Set) Mappings() []model.ColumnMapping {
	return append([]model.ColumnMapping(nil), s.items...)
}

// Index maps each target to the first non-ignored source column assigned to it.
func Index(mappings []model.ColumnMapping) map[string]string {
	idx := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.Ignored() || m.Target == "" {
			continue
		}
		if _, ok := idx[m.Target]; !ok {
			idx[m.Target] = m.Source
		}
	}
	return idx
}

// File is the on-disk YAML shape of a saved mapping.
type File struct {
	Mappings []model.ColumnMapping `yaml:"mappings"`
}

// LoadFile reads mappings from a YAML file.
func LoadFile(path string) ([]model.ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}
	for i := range f.Mappings {
		if f.Mappings[i].Confidence == 0 && !f.Mappings[i].Ignored() {
			f.Mappings[i].Confidence = ConfidenceExact
		}
	}
	return f.Mappings, nil
}

// SaveFile writes mappings to a YAML file.
func SaveFile(path string, mappings []model.ColumnMapping) error {
	data, err := yaml.Marshal(File{Mappings: mappings})
	if err != nil {
		return fmt.Errorf("marshaling mappings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing mapping file: %w", err)
	}
	return nil
}
