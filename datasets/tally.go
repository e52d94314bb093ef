package datasets

import "sync"

// Tally is used to count votes on hashed features and return the majority votes.
// It is safe for concurrent use.
type Tally struct {
	// positive votes map the feature to true, negative to false
	votes map[uint32]int64

	mut sync.Mutex
}

// Init initializes the tally structure
func (t *Tally) Init() {
	t.mut.Lock()
	t.votes = make(map[uint32]int64)
	t.mut.Unlock()
}

// Free frees the memory occupied by the tally
func (t *Tally) Free() {
	t.mut.Lock()
	t.votes = nil
	t.mut.Unlock()
}

// Len reports the number of features with a non-zero vote
func (t *Tally) Len() int {
	t.mut.Lock()
	defer t.mut.Unlock()
	return len(t.votes)
}

// AddVote adds vote to feature. Features whose votes cancel out are forgotten.
func (t *Tally) AddVote(feature uint32, vote int64) {
	if vote == 0 {
		return
	}
	t.mut.Lock()
	t.votes[feature] += vote
	if t.votes[feature] == 0 {
		delete(t.votes, feature)
	}
	t.mut.Unlock()
}

// Vote returns the current vote of feature
func (t *Tally) Vote(feature uint32) int64 {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.votes[feature]
}

// Dataset materializes the majority votes: true for features voted positive,
// false for features voted negative.
func (t *Tally) Dataset() map[uint32]bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	set := make(map[uint32]bool, len(t.votes))
	for k, v := range t.votes {
		set[k] = v > 0
	}
	return set
}
