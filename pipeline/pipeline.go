// Package pipeline sequences the image classification demo: scan a folder
// of labeled images, shuffle and split them, train a classifier and print
// its predictions on the test set.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/datasets/imagedir"
	"github.com/neurlang/imageclassifier/learning"
	"github.com/neurlang/imageclassifier/progress"
	"github.com/neurlang/imageclassifier/transform"
)

// Output headers of the inference stages.
const (
	HeaderSingle = "Classifying single image"
	HeaderBatch  = "Classifying multiple images"
)

// Pipeline runs the demo for one Config.
type Pipeline struct {
	cfg     Config
	fs      billy.Filesystem
	out     io.Writer
	sink    progress.Sink
	log     *slog.Logger
	threads int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFilesystem reads images and writes the workspace on fs instead of the
// host filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithOutput sets where prediction lines are printed, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithSink sets the receiver of trainer metrics messages.
func WithSink(s progress.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithThreads bounds the trainer parallelism.
func WithThreads(n int) Option {
	return func(p *Pipeline) { p.threads = n }
}

// New validates cfg and creates a Pipeline. Without WithFilesystem, paths of
// cfg are made absolute and resolved on the host filesystem.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, out: os.Stdout, sink: progress.Discard}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.fs == nil {
		for _, path := range []*string{&p.cfg.RootAssetPath, &p.cfg.WorkspacePath, &p.cfg.ModelPath} {
			if *path == "" {
				continue
			}
			abs, err := filepath.Abs(*path)
			if err != nil {
				return nil, fmt.Errorf("pipeline: %q: %w", *path, err)
			}
			*path = abs
		}
		p.fs = osfs.New("/")
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Load scans the root asset folder into a Dataset.
func (p *Pipeline) Load() (datasets.Dataset, error) {
	s := imagedir.New(p.fs, &imagedir.Options{
		FileNameLabels:  !p.cfg.UseFolderNameAsLabel,
		CaseInsensitive: p.cfg.CaseInsensitiveExtensions,
	})
	d, err := s.Scan(p.cfg.RootAssetPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load: %w", err)
	}
	if len(d) == 0 {
		return nil, fmt.Errorf("pipeline: load %q: %w", p.cfg.RootAssetPath, datasets.ErrEmptyDataset)
	}
	p.log.Info("loaded images", "root", p.cfg.RootAssetPath, "images", len(d), "labels", len(d.Labels()))
	return d, nil
}

// Prepared is a shuffled and split dataset with its label keys.
type Prepared struct {
	datasets.Split
	Keys *transform.KeyMap
}

// Prepare shuffles d, splits it three ways and fits the label keys on the
// whole shuffled set.
func (p *Pipeline) Prepare(d datasets.Dataset) (Prepared, error) {
	shuffled := datasets.Shuffle(d, datasets.NewRand(p.cfg.Seed))
	split, err := datasets.SplitThreeWay(shuffled, p.cfg.TestFraction, p.cfg.ValidationFraction)
	if err != nil {
		return Prepared{}, fmt.Errorf("pipeline: split: %w", err)
	}
	keys, err := transform.FitKeyMap(shuffled)
	if err != nil {
		return Prepared{}, fmt.Errorf("pipeline: keys: %w", err)
	}
	p.log.Info("split dataset",
		"train", len(split.Train), "validation", len(split.Validation), "test", len(split.Test))
	return Prepared{Split: split, Keys: keys}, nil
}

// Train fits a model on the train set, picking the epoch by the validation set.
func (p *Pipeline) Train(ctx context.Context, prep Prepared) (*learning.Model, error) {
	m, err := learning.Fit(ctx, prep.Train, prep.Keys, learning.Options{
		Arch:                                     p.cfg.ArchitectureID,
		Bottleneck:                               p.cfg.bottleneckOptions(),
		ValidationSet:                            prep.Validation,
		MetricsCallback:                          func(m learning.Metrics) { p.sink.Report(m.String()) },
		TestOnTrainSet:                           p.cfg.TestOnTrainSet,
		ReuseTrainSetBottleneckCachedValues:      p.cfg.ReuseBottlenecks,
		ReuseValidationSetBottleneckCachedValues: p.cfg.ReuseBottlenecks,
		WorkspacePath:                            p.cfg.WorkspacePath,
		Epochs:                                   p.cfg.Epochs,
		Seed:                                     p.cfg.Seed,
		Threads:                                  p.threads,
		FS:                                       p.fs,
		Logger:                                   p.log,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: train: %w", err)
	}
	return m, nil
}

// FormatPrediction renders one prediction line.
func FormatPrediction(pr learning.Prediction) string {
	return fmt.Sprintf("Image: %s | Actual Value: %s | Predicted Value: %s",
		filepath.Base(pr.Path), pr.Label, pr.PredictedLabel)
}

// ClassifySingleImage predicts the first test sample and prints it.
func (p *Pipeline) ClassifySingleImage(ctx context.Context, m *learning.Model, test datasets.Dataset) (learning.Prediction, error) {
	if len(test) == 0 {
		return learning.Prediction{}, fmt.Errorf("pipeline: classify: test set: %w", datasets.ErrEmptyDataset)
	}
	pr, err := m.Predict(ctx, test[0])
	if err != nil {
		return pr, fmt.Errorf("pipeline: classify: %w", err)
	}
	fmt.Fprintln(p.out, HeaderSingle)
	fmt.Fprintln(p.out, FormatPrediction(pr))
	return pr, nil
}

// ClassifyImages predicts the first BatchPreviewSize test samples and prints them.
func (p *Pipeline) ClassifyImages(ctx context.Context, m *learning.Model, test datasets.Dataset) ([]learning.Prediction, error) {
	prs, err := m.Transform(ctx, test.Take(p.cfg.BatchPreviewSize))
	if err != nil {
		return nil, fmt.Errorf("pipeline: classify: %w", err)
	}
	fmt.Fprintln(p.out, HeaderBatch)
	for _, pr := range prs {
		fmt.Fprintln(p.out, FormatPrediction(pr))
	}
	return prs, nil
}

// Result collects what a Run produced.
type Result struct {
	Split      datasets.Split
	Evaluation learning.Evaluation
	Single     learning.Prediction
	Batch      []learning.Prediction
}

// Run executes the whole demo: load, prepare, train, evaluate, optionally
// save the model, then classify one and a batch of test images.
func (p *Pipeline) Run(ctx context.Context) (res Result, err error) {
	d, err := p.Load()
	if err != nil {
		return res, err
	}
	prep, err := p.Prepare(d)
	if err != nil {
		return res, err
	}
	res.Split = prep.Split

	m, err := p.Train(ctx, prep)
	if err != nil {
		return res, err
	}
	defer m.Close()

	if len(prep.Test) > 0 {
		res.Evaluation, err = m.Evaluate(ctx, prep.Test)
		if err != nil {
			return res, fmt.Errorf("pipeline: evaluate: %w", err)
		}
		p.log.Info("evaluated", "accuracy", res.Evaluation.Accuracy, "test", res.Evaluation.Total)
		fmt.Fprintln(p.out, res.Evaluation.String())
	}

	if p.cfg.ModelPath != "" {
		if err := m.SaveFile(p.fs, p.cfg.ModelPath); err != nil {
			return res, fmt.Errorf("pipeline: %w", err)
		}
		p.log.Info("saved model", "path", p.cfg.ModelPath)
	}

	res.Single, err = p.ClassifySingleImage(ctx, m, prep.Test)
	if err != nil {
		return res, err
	}
	res.Batch, err = p.ClassifyImages(ctx, m, prep.Test)
	return res, err
}
