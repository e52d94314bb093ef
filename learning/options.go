package learning

import (
	"io"
	"log/slog"

	"github.com/go-git/go-billy/v5"

	"github.com/neurlang/imageclassifier/bottleneck"
	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/parallel"
)

// DefaultEpochs is the number of premodulo candidates tried when Epochs is zero.
const DefaultEpochs = 8

// Options configure the image classification trainer.
type Options struct {
	// Arch selects the bottleneck architecture, see bottleneck.Architectures.
	Arch string

	// Bottleneck carries architecture specific settings.
	Bottleneck *bottleneck.Options

	// ValidationSet picks the best epoch. The train set is used when empty.
	ValidationSet datasets.Dataset

	// MetricsCallback receives bottleneck and training progress. Calls are serialized.
	MetricsCallback func(Metrics)

	// TestOnTrainSet reports the accuracy of the final model on the train set.
	TestOnTrainSet bool

	// ReuseTrainSetBottleneckCachedValues reads train features from the workspace cache.
	ReuseTrainSetBottleneckCachedValues bool

	// ReuseValidationSetBottleneckCachedValues reads validation features from the workspace cache.
	ReuseValidationSetBottleneckCachedValues bool

	// WorkspacePath holds the bottleneck cache. Empty disables caching.
	WorkspacePath string

	// Epochs is the number of premodulo candidates, DefaultEpochs when zero.
	Epochs int

	// Seed makes salts reproducible. Zero seeds from the clock.
	Seed int64

	// Threads bounds the parallelism, parallel.Threads() when zero.
	Threads int

	// FS is the filesystem images are read from and the workspace is written to.
	FS billy.Filesystem

	// ImageFolder resolves relative sample paths.
	ImageFolder string

	// Logger receives diagnostics, discarded when nil.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Arch == "" {
		o.Arch = bottleneck.HashNet13
	}
	if o.Epochs <= 0 {
		o.Epochs = DefaultEpochs
	}
	if o.Threads <= 0 {
		o.Threads = parallel.Threads()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
