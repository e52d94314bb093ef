package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/hashtron"
	"github.com/neurlang/imageclassifier/parallel"
)

// Prediction is the classification of one sample.
type Prediction struct {
	Path           string
	Label          string
	PredictedLabel string
	Score          float64
}

// Model is a trained image classifier: one hashtron per label.
type Model struct {
	arch    string
	labels  []string
	classes []hashtron.Hashtron
	feat    *featurizer
}

// Arch returns the bottleneck architecture of the model.
func (m *Model) Arch() string {
	return m.arch
}

// Labels returns the labels ordered by class key.
func (m *Model) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Premodulo returns the premodulo the model was trained with.
func (m *Model) Premodulo() uint32 {
	if len(m.classes) == 0 {
		return 0
	}
	return m.classes[0].Premodulo()
}

// Predict classifies one sample. The sample label is copied, not used.
func (m *Model) Predict(ctx context.Context, s datasets.LabeledSample) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	feats, _, err := m.feat.features(s.Path, true)
	if err != nil {
		return Prediction{}, err
	}
	return m.prediction(s, feats), nil
}

func (m *Model) prediction(s datasets.LabeledSample, feats []uint32) Prediction {
	p := Prediction{Path: s.Path, Label: s.Label}
	c, n := predict(m.classes, feats)
	if int(c) < len(m.labels) {
		p.PredictedLabel = m.labels[c]
	}
	if len(feats) > 0 {
		p.Score = float64(n) / float64(len(feats))
	}
	return p
}

// Transform classifies every sample of d in parallel. Predictions keep the order of d.
func (m *Model) Transform(ctx context.Context, d datasets.Dataset) ([]Prediction, error) {
	out := make([]Prediction, len(d))
	err := parallel.ForEach(ctx, len(d), m.feat.threads, func(ctx context.Context, i int) (err error) {
		out[i], err = m.Predict(ctx, d[i])
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClassEvaluation counts the predictions of one actual label.
type ClassEvaluation struct {
	Total   int
	Correct int
}

// Evaluation summarizes predictions against actual labels.
type Evaluation struct {
	Total    int
	Correct  int
	Accuracy float64
	PerClass map[string]ClassEvaluation
}

func (e Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.4f (%d/%d)", e.Accuracy, e.Correct, e.Total)
	labels := make([]string, 0, len(e.PerClass))
	for l := range e.PerClass {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		c := e.PerClass[l]
		fmt.Fprintf(&b, "\n  %s: %d/%d", l, c.Correct, c.Total)
	}
	return b.String()
}

// Evaluate scores predictions against their actual labels.
func Evaluate(predictions []Prediction) Evaluation {
	e := Evaluation{PerClass: make(map[string]ClassEvaluation)}
	for _, p := range predictions {
		c := e.PerClass[p.Label]
		c.Total++
		e.Total++
		if p.PredictedLabel == p.Label {
			c.Correct++
			e.Correct++
		}
		e.PerClass[p.Label] = c
	}
	if e.Total > 0 {
		e.Accuracy = float64(e.Correct) / float64(e.Total)
	}
	return e
}

// Evaluate classifies d and scores the predictions.
func (m *Model) Evaluate(ctx context.Context, d datasets.Dataset) (Evaluation, error) {
	p, err := m.Transform(ctx, d)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluate(p), nil
}

// Close releases the bottleneck extractor.
func (m *Model) Close() error {
	if m.feat == nil {
		return nil
	}
	return m.feat.close()
}
