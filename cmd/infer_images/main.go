package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"github.com/neurlang/imageclassifier/bottleneck"
	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/datasets/imagedir"
	"github.com/neurlang/imageclassifier/learning"
	"github.com/neurlang/imageclassifier/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func abs(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}

func run() error {
	model := flag.String("model", "", "model file written by train_images")
	assets := flag.String("assets", "", "folder of labeled images to evaluate")
	filenameLabels := flag.Bool("filename-labels", false, "derive labels from file name prefixes instead of folder names")
	workspace := flag.String("workspace", pipeline.DefaultWorkspace(), "bottleneck cache folder, empty disables it")
	onnxModel := flag.String("onnx-model", "", "onnx backbone for models of the onnx architecture")
	onnxLib := flag.String("onnx-lib", "", "onnxruntime shared library")
	threads := flag.Int("threads", 0, "worker threads, 0 for all logical cores")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*level)); err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})).
		With("run", uuid.NewString())

	if *model == "" {
		return fmt.Errorf("infer_images: -model is required")
	}
	modelPath, err := abs(*model)
	if err != nil {
		return err
	}
	ws, err := abs(*workspace)
	if err != nil {
		return err
	}
	fs := osfs.New("/")

	var d datasets.Dataset
	if *assets != "" {
		root, err := abs(*assets)
		if err != nil {
			return err
		}
		d, err = imagedir.New(fs, &imagedir.Options{FileNameLabels: *filenameLabels}).Scan(root)
		if err != nil {
			return err
		}
	}
	for _, arg := range flag.Args() {
		path, err := abs(arg)
		if err != nil {
			return err
		}
		d = append(d, datasets.LabeledSample{Path: path, Label: imagedir.DeriveLabel(path, !*filenameLabels)})
	}
	if len(d) == 0 {
		return fmt.Errorf("infer_images: no images: %w", datasets.ErrEmptyDataset)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := learning.LoadFile(modelPath, learning.Options{
		Bottleneck:    &bottleneck.Options{OnnxModelPath: *onnxModel, OnnxLibraryPath: *onnxLib},
		WorkspacePath: ws,
		Threads:       *threads,
		FS:            fs,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer m.Close()
	log.Info("loaded model", "path", modelPath, "arch", m.Arch(), "labels", len(m.Labels()))

	predictions, err := m.Transform(ctx, d)
	if err != nil {
		return err
	}
	for _, p := range predictions {
		fmt.Println(pipeline.FormatPrediction(p))
	}
	if *assets != "" {
		fmt.Println(learning.Evaluate(predictions))
	}
	return nil
}
