package hashtron

import "github.com/neurlang/quaternary"

// New builds a hashtron answering set for keys produced with salt and premodulo.
// An empty set yields a hashtron which answers false for every feature.
func New(salt, premodulo uint32, set map[uint32]bool) (h *Hashtron, err error) {
	h = &Hashtron{salt: salt, premodulo: premodulo}
	if len(set) == 0 {
		return h, nil
	}
	h.quaternary = []byte(quaternary.Make(set))
	return h, nil
}
