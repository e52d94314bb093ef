// Package datasets implements the labeled image dataset and its train, validation and test splits
package datasets

// LabeledSample is one image on disk together with its class label.
type LabeledSample struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// Dataset is an ordered sequence of labeled samples. Operations on a Dataset
// never modify it in place, they return new sequences.
type Dataset []LabeledSample

// Len returns the number of samples.
func (d Dataset) Len() int {
	return len(d)
}

// Take returns a copy of the first n samples, or all of them if there are fewer.
func (d Dataset) Take(n int) Dataset {
	if n < 0 {
		n = 0
	}
	if n > len(d) {
		n = len(d)
	}
	out := make(Dataset, n)
	copy(out, d[:n])
	return out
}

// Labels returns the distinct labels in order of first appearance.
func (d Dataset) Labels() (o []string) {
	seen := make(map[string]struct{})
	for _, s := range d {
		if _, ok := seen[s.Label]; ok {
			continue
		}
		seen[s.Label] = struct{}{}
		o = append(o, s.Label)
	}
	return
}

// Count returns the number of samples per label.
func (d Dataset) Count() map[string]int {
	o := make(map[string]int)
	for _, s := range d {
		o[s.Label]++
	}
	return o
}

// Split is the partition of a shuffled dataset into three disjoint parts.
type Split struct {
	Train      Dataset
	Validation Dataset
	Test       Dataset
}

// Len returns the total number of samples over all three parts.
func (s Split) Len() int {
	return len(s.Train) + len(s.Validation) + len(s.Test)
}
