package learning

import (
	"context"
	"fmt"

	"github.com/neurlang/imageclassifier/bottleneck"
	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/parallel"
	"github.com/neurlang/imageclassifier/transform"
)

// featurizer turns sample paths into bottleneck features.
type featurizer struct {
	loader    *transform.RawLoader
	extractor bottleneck.Extractor
	cache     *bottleneck.Cache
	threads   int
}

func newFeaturizer(opts *Options) (*featurizer, error) {
	if opts.FS == nil {
		return nil, fmt.Errorf("learning: no filesystem: %w", ErrTraining)
	}
	ext, err := bottleneck.New(opts.Arch, opts.Bottleneck)
	if err != nil {
		return nil, fmt.Errorf("learning: %w", err)
	}
	return newFeaturizerWith(opts, ext), nil
}

// newFeaturizerWith wraps ext. The workspace cache is keyed by ext.CacheID.
func newFeaturizerWith(opts *Options, ext bottleneck.Extractor) *featurizer {
	f := &featurizer{
		loader:    transform.NewRawLoader(opts.FS, opts.ImageFolder),
		extractor: ext,
		threads:   opts.Threads,
	}
	if opts.WorkspacePath != "" {
		f.cache = bottleneck.NewCache(opts.FS, opts.WorkspacePath, ext.CacheID())
	}
	return f
}

// features computes the features of the image at path. With reuse set a
// cached entry is returned when present. Fresh features are always cached.
func (f *featurizer) features(path string, reuse bool) (feats []uint32, cached bool, err error) {
	raw, err := f.loader.Load(path)
	if err != nil {
		return nil, false, err
	}
	key := bottleneck.Key(raw)
	if reuse && f.cache != nil {
		feats, ok, err := f.cache.Get(key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return feats, true, nil
		}
	}
	img, err := transform.Decode(path, raw)
	if err != nil {
		return nil, false, err
	}
	feats, err = f.extractor.Bottleneck(img)
	if err != nil {
		return nil, false, fmt.Errorf("learning: bottleneck %q: %w", path, err)
	}
	if f.cache != nil {
		if err := f.cache.Put(key, feats); err != nil {
			return nil, false, err
		}
	}
	return feats, false, nil
}

// all computes the features of every sample of d in parallel, preserving order.
func (f *featurizer) all(ctx context.Context, d datasets.Dataset, name string, reuse bool, r *reporter) ([][]uint32, error) {
	out := make([][]uint32, len(d))
	err := parallel.ForEach(ctx, len(d), f.threads, func(ctx context.Context, i int) error {
		feats, cached, err := f.features(d[i].Path, reuse)
		if err != nil {
			return err
		}
		out[i] = feats
		r.report(Metrics{Bottleneck: &BottleneckMetrics{DatasetUsed: name, Index: i, Cached: cached}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *featurizer) close() error {
	return f.extractor.Close()
}
