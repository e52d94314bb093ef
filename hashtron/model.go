// Package hashtron implements a hashtron (binary classifier)
package hashtron

import (
	"encoding/json"

	"github.com/neurlang/quaternary"

	"github.com/neurlang/imageclassifier/hash"
)

// Hashtron represents individual hashtron (binary classifier) in memory.
// Features are keyed by a salted premodulo hash and answered by a quaternary filter.
type Hashtron struct {
	salt      uint32
	premodulo uint32

	quaternary []byte
}

// Salt gets the salt of the premodulo hash
func (h Hashtron) Salt() uint32 {
	return h.salt
}

// Premodulo gets the premodulo, zero when features are used as keys directly
func (h Hashtron) Premodulo() uint32 {
	return h.premodulo
}

// LenQ gets the size of learned data (size of quaternary filter)
func (h Hashtron) LenQ() int {
	return len(h.quaternary)
}

// Key maps a feature to the key looked up in the filter
func (h Hashtron) Key(feature uint32) uint32 {
	return hash.Key(feature, h.salt, h.premodulo)
}

type hashtronJSON struct {
	Salt       uint32 `json:"salt"`
	Premodulo  uint32 `json:"premodulo"`
	Quaternary []byte `json:"quaternary"`
}

// MarshalJSON serializes the hashtron
func (h Hashtron) MarshalJSON() ([]byte, error) {
	return json.Marshal(hashtronJSON{Salt: h.salt, Premodulo: h.premodulo, Quaternary: h.quaternary})
}

// UnmarshalJSON deserializes the hashtron
func (h *Hashtron) UnmarshalJSON(b []byte) error {
	var v hashtronJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	h.salt, h.premodulo, h.quaternary = v.Salt, v.Premodulo, v.Quaternary
	return nil
}

// filter returns the learned quaternary filter
func (h Hashtron) filter() quaternary.Filter {
	return quaternary.Filter(h.quaternary)
}
