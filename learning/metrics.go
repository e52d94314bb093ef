package learning

import (
	"fmt"
	"sync"
)

// Dataset names used in metrics.
const (
	DatasetTrain      = "Train"
	DatasetValidation = "Validation"
)

// BottleneckMetrics describe the bottleneck computation of one image.
type BottleneckMetrics struct {
	DatasetUsed string
	Index       int
	Cached      bool
}

// TrainMetrics describe one training epoch.
type TrainMetrics struct {
	DatasetUsed string
	Epoch       int
	Premodulo   uint32
	Accuracy    float64
}

// Metrics is one progress event. Exactly one field is set.
type Metrics struct {
	Bottleneck *BottleneckMetrics
	Train      *TrainMetrics
}

func (m Metrics) String() string {
	switch {
	case m.Bottleneck != nil:
		b := m.Bottleneck
		s := fmt.Sprintf("Phase: Bottleneck Computation, Dataset used: %s, Image Index: %3d", b.DatasetUsed, b.Index)
		if b.Cached {
			s += " (cached)"
		}
		return s
	case m.Train != nil:
		t := m.Train
		return fmt.Sprintf("Phase: Training, Dataset used: %s, Epoch: %3d, Premodulo: %d, Accuracy: %.4f",
			t.DatasetUsed, t.Epoch, t.Premodulo, t.Accuracy)
	}
	return ""
}

// reporter serializes calls to the metrics callback.
type reporter struct {
	mu sync.Mutex
	cb func(Metrics)
}

func (r *reporter) report(m Metrics) {
	if r == nil || r.cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cb(m)
}
