// Package learning implements the image classification trainer: bottleneck
// features are voted into one hashtron per class and the premodulo with the
// best validation accuracy is kept.
package learning

import (
	"context"
	"errors"
	"fmt"

	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/hash"
	"github.com/neurlang/imageclassifier/hashtron"
	"github.com/neurlang/imageclassifier/parallel"
	"github.com/neurlang/imageclassifier/transform"
)

// ErrTraining is returned when a model cannot be trained.
var ErrTraining = errors.New("training failed")

// Fit trains a model on train. keys maps labels to class keys and must hold
// at least two labels, including every label of train and the validation set.
func Fit(ctx context.Context, train datasets.Dataset, keys *transform.KeyMap, opts Options) (*Model, error) {
	opts.defaults()
	if len(train) == 0 {
		return nil, fmt.Errorf("learning: train set: %w", errors.Join(ErrTraining, datasets.ErrEmptyDataset))
	}
	if keys == nil || keys.Len() < 2 {
		n := 0
		if keys != nil {
			n = keys.Len()
		}
		return nil, fmt.Errorf("learning: %d labels, need at least 2: %w", n, ErrTraining)
	}
	trainY, err := classKeys(train, keys)
	if err != nil {
		return nil, err
	}
	evalSet, evalName, evalReuse := opts.ValidationSet, DatasetValidation, opts.ReuseValidationSetBottleneckCachedValues
	if len(evalSet) == 0 {
		evalSet, evalName, evalReuse = train, DatasetTrain, opts.ReuseTrainSetBottleneckCachedValues
	}
	evalY, err := classKeys(evalSet, keys)
	if err != nil {
		return nil, err
	}

	f, err := newFeaturizer(&opts)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			f.close()
		}
	}()

	r := &reporter{cb: opts.MetricsCallback}
	log := opts.Logger.With("arch", f.extractor.Name())
	log.Info("computing bottlenecks", "train", len(train), "validation", len(opts.ValidationSet), "threads", opts.Threads)

	trainX, err := f.all(ctx, train, DatasetTrain, opts.ReuseTrainSetBottleneckCachedValues, r)
	if err != nil {
		return nil, err
	}
	evalX := trainX
	if evalName == DatasetValidation {
		evalX, err = f.all(ctx, evalSet, DatasetValidation, evalReuse, r)
		if err != nil {
			return nil, err
		}
	}

	m := &Model{arch: f.extractor.Name(), labels: keys.Values(), feat: f}
	rng := datasets.NewRand(opts.Seed)
	bestAcc := -1.0
	for epoch, premodulo := range premoduloSchedule(opts.Epochs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		salt := rng.Uint32()
		classes, err := fitClasses(ctx, trainX, trainY, keys.Len(), salt, premodulo, opts.Threads)
		if err != nil {
			return nil, err
		}
		acc := accuracy(classes, evalX, evalY)
		log.Debug("epoch", "epoch", epoch, "premodulo", premodulo, "salt", salt, "accuracy", acc)
		r.report(Metrics{Train: &TrainMetrics{DatasetUsed: evalName, Epoch: epoch, Premodulo: premodulo, Accuracy: acc}})
		if acc > bestAcc {
			bestAcc = acc
			m.classes = classes
		}
	}
	log.Info("trained", "accuracy", bestAcc, "premodulo", m.classes[0].Premodulo())

	if opts.TestOnTrainSet {
		acc := accuracy(m.classes, trainX, trainY)
		r.report(Metrics{Train: &TrainMetrics{DatasetUsed: DatasetTrain, Premodulo: m.classes[0].Premodulo(), Accuracy: acc}})
	}
	ok = true
	return m, nil
}

func classKeys(d datasets.Dataset, keys *transform.KeyMap) ([]uint32, error) {
	y := make([]uint32, len(d))
	for i, s := range d {
		k, ok := keys.Key(s.Label)
		if !ok {
			return nil, fmt.Errorf("learning: unknown label %q of %q: %w", s.Label, s.Path, ErrTraining)
		}
		y[i] = k
	}
	return y, nil
}

// fitClasses trains one hashtron per class. Each sample votes its keys up in
// its own class and down in the others, weighted so that both sides of every
// class carry the same total weight.
func fitClasses(ctx context.Context, x [][]uint32, y []uint32, classes int, salt, premodulo uint32, threads int) ([]hashtron.Hashtron, error) {
	count := make([]int64, classes)
	for _, c := range y {
		count[c]++
	}
	total := int64(len(y))
	out := make([]hashtron.Hashtron, classes)
	err := parallel.ForEach(ctx, classes, threads, func(ctx context.Context, c int) error {
		var t datasets.Tally
		t.Init()
		defer t.Free()
		var keys []uint32
		for i, feats := range x {
			vote := -count[c]
			if y[i] == uint32(c) {
				vote = total - count[c]
			}
			if cap(keys) < len(feats) {
				keys = make([]uint32, len(feats))
			}
			keys = keys[:len(feats)]
			hash.Keys(keys, feats, salt, premodulo)
			for _, k := range keys {
				t.AddVote(k, vote)
			}
		}
		h, err := hashtron.New(salt, premodulo, t.Dataset())
		if err != nil {
			return fmt.Errorf("learning: class %d: %w", c, errors.Join(ErrTraining, err))
		}
		out[c] = *h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// predict returns the class whose hashtron answers true for the most
// features. Ties go to the lowest class key.
func predict(classes []hashtron.Hashtron, feats []uint32) (class uint32, best int) {
	best = -1
	for c := range classes {
		n := classes[c].Count(feats)
		if n > best {
			class, best = uint32(c), n
		}
	}
	return
}

func accuracy(classes []hashtron.Hashtron, x [][]uint32, y []uint32) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i, feats := range x {
		if c, _ := predict(classes, feats); c == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}
