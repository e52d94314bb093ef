// Package transform implements the preprocessing stages in front of the trainer:
// label to key mapping and raw image byte loading.
package transform

import (
	"fmt"

	"github.com/neurlang/imageclassifier/datasets"
)

// KeyMap assigns dense uint32 keys to labels in order of first appearance.
type KeyMap struct {
	keys   map[string]uint32
	values []string
}

// NewKeyMap builds a KeyMap from distinct values; key i maps to values[i].
func NewKeyMap(values []string) *KeyMap {
	m := &KeyMap{keys: make(map[string]uint32, len(values))}
	for _, v := range values {
		if _, ok := m.keys[v]; ok {
			continue
		}
		m.keys[v] = uint32(len(m.values))
		m.values = append(m.values, v)
	}
	return m
}

// FitKeyMap builds a KeyMap from the labels of d.
func FitKeyMap(d datasets.Dataset) (*KeyMap, error) {
	if len(d) == 0 {
		return nil, fmt.Errorf("transform: fit key map: %w", datasets.ErrEmptyDataset)
	}
	return NewKeyMap(d.Labels()), nil
}

// Key maps a label to its key.
func (m *KeyMap) Key(label string) (uint32, bool) {
	k, ok := m.keys[label]
	return k, ok
}

// Value maps a key back to its label.
func (m *KeyMap) Value(key uint32) (string, bool) {
	if int(key) >= len(m.values) {
		return "", false
	}
	return m.values[key], true
}

// Len returns the number of distinct labels.
func (m *KeyMap) Len() int {
	return len(m.values)
}

// Values returns a copy of the labels ordered by key.
func (m *KeyMap) Values() []string {
	return append([]string(nil), m.values...)
}
