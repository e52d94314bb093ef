package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"github.com/neurlang/imageclassifier/bottleneck"
	"github.com/neurlang/imageclassifier/parallel"
	"github.com/neurlang/imageclassifier/pipeline"
	"github.com/neurlang/imageclassifier/progress"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "json config file, flags override its values")
	assets := flag.String("assets", "", "folder of labeled images")
	workspace := flag.String("workspace", "", "bottleneck cache folder")
	arch := flag.String("arch", "", "architecture: "+strings.Join(bottleneck.Architectures(), ", "))
	testFraction := flag.Float64("test", 0, "test fraction")
	validationFraction := flag.Float64("validation", 0, "validation fraction of the test part")
	batch := flag.Int("batch", -1, "number of test images classified in batch")
	filenameLabels := flag.Bool("filename-labels", false, "derive labels from file name prefixes instead of folder names")
	caseInsensitive := flag.Bool("case-insensitive", false, "match image extensions case-insensitively")
	seed := flag.Int64("seed", 0, "shuffle and salt seed, 0 for time based")
	epochs := flag.Int("epochs", 0, "number of premodulo epochs")
	dstmodel := flag.String("dstmodel", "", "model destination file")
	onnxModel := flag.String("onnx-model", "", "onnx backbone for the onnx architecture")
	onnxLib := flag.String("onnx-lib", "", "onnxruntime shared library")
	level := flag.String("log-level", "", "log level: debug, info, warn, error")
	testOnTrain := flag.Bool("test-on-train", false, "report accuracy on the train set")
	reuse := flag.Bool("reuse", true, "reuse cached bottleneck values")
	threads := flag.Int("threads", 0, "worker threads, 0 for all logical cores")
	flag.Parse()

	cfg := pipeline.Defaults()
	if *configPath != "" {
		path, err := filepath.Abs(*configPath)
		if err != nil {
			return err
		}
		if cfg, err = pipeline.LoadFile(osfs.New("/"), path); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "assets":
			cfg.RootAssetPath = *assets
		case "workspace":
			cfg.WorkspacePath = *workspace
		case "arch":
			cfg.ArchitectureID = *arch
		case "test":
			cfg.TestFraction = *testFraction
		case "validation":
			cfg.ValidationFraction = *validationFraction
		case "batch":
			cfg.BatchPreviewSize = *batch
		case "filename-labels":
			cfg.UseFolderNameAsLabel = !*filenameLabels
		case "case-insensitive":
			cfg.CaseInsensitiveExtensions = *caseInsensitive
		case "seed":
			cfg.Seed = *seed
		case "epochs":
			cfg.Epochs = *epochs
		case "dstmodel":
			cfg.ModelPath = *dstmodel
		case "onnx-model":
			cfg.OnnxModelPath = *onnxModel
		case "onnx-lib":
			cfg.OnnxLibraryPath = *onnxLib
		case "log-level":
			cfg.LogLevel = *level
		case "test-on-train":
			cfg.TestOnTrainSet = *testOnTrain
		case "reuse":
			cfg.ReuseBottlenecks = *reuse
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})).
		With("run", uuid.NewString())
	log.Info("starting", "cpu", parallel.CPU(), "threads", parallel.Threads(), "arch", cfg.ArchitectureID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg,
		pipeline.WithOutput(os.Stdout),
		pipeline.WithSink(progress.NewWriter(os.Stdout)),
		pipeline.WithLogger(log),
		pipeline.WithThreads(*threads),
	)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	if err != nil {
		log.Error("run failed", "error", err)
		return err
	}
	log.Info("done", "train", len(res.Split.Train), "validation", len(res.Split.Validation),
		"test", len(res.Split.Test), "accuracy", res.Evaluation.Accuracy)
	return nil
}
