package hashtron

// Forward reports the bit the hashtron learned for the key of feature.
// Keys never seen in training give an arbitrary but stable answer.
func (h Hashtron) Forward(feature uint32) bool {
	if len(h.quaternary) == 0 {
		return false
	}
	return h.filter().GetUint32(h.Key(feature))
}

// Count counts the features for which Forward is true
func (h Hashtron) Count(features []uint32) (n int) {
	for _, f := range features {
		if h.Forward(f) {
			n++
		}
	}
	return
}
