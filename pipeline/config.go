package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"

	"github.com/neurlang/imageclassifier/bottleneck"
	"github.com/neurlang/imageclassifier/learning"
)

// ErrInvalidConfig is returned when a Config fails validation or decoding.
var ErrInvalidConfig = errors.New("invalid config")

// Config drives one run of the pipeline.
type Config struct {
	// RootAssetPath is the folder scanned for labeled images.
	RootAssetPath string `json:"root_asset_path"`

	// WorkspacePath holds the bottleneck cache.
	WorkspacePath string `json:"workspace_path"`

	// TestFraction is the share of the shuffled set held out from training.
	TestFraction float64 `json:"test_fraction"`

	// ValidationFraction is the share of the held out part used for validation.
	ValidationFraction float64 `json:"validation_fraction"`

	// ArchitectureID selects the bottleneck architecture.
	ArchitectureID string `json:"architecture"`

	// BatchPreviewSize is the number of test images classified in batch.
	BatchPreviewSize int `json:"batch_preview_size"`

	UseFolderNameAsLabel      bool   `json:"use_folder_name_as_label"`
	CaseInsensitiveExtensions bool   `json:"case_insensitive_extensions"`
	Seed                      int64  `json:"seed"`
	Epochs                    int    `json:"epochs"`
	ModelPath                 string `json:"model_path"`
	OnnxModelPath             string `json:"onnx_model_path"`
	OnnxLibraryPath           string `json:"onnx_library_path"`
	LogLevel                  string `json:"log_level"`
	TestOnTrainSet            bool   `json:"test_on_train_set"`
	ReuseBottlenecks          bool   `json:"reuse_bottlenecks"`
}

// DefaultWorkspace returns the bottleneck cache folder under the XDG cache home.
func DefaultWorkspace() string {
	return filepath.Join(xdg.CacheHome, "imageclassifier", "workspace")
}

// Defaults returns the demo's default configuration.
func Defaults() Config {
	return Config{
		RootAssetPath:        "assets",
		WorkspacePath:        DefaultWorkspace(),
		TestFraction:         0.3,
		ValidationFraction:   0.5,
		ArchitectureID:       bottleneck.HashNet13,
		BatchPreviewSize:     10,
		UseFolderNameAsLabel: true,
		Epochs:               learning.DefaultEpochs,
		LogLevel:             "info",
		ReuseBottlenecks:     true,
	}
}

// LoadJSON decodes r over Defaults. Unknown fields are rejected.
func LoadJSON(r io.Reader) (Config, error) {
	cfg := Defaults()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("pipeline: config: %w", errors.Join(ErrInvalidConfig, err))
	}
	return cfg, nil
}

// LoadFile decodes the config file at path on fs.
func LoadFile(fs billy.Filesystem, path string) (Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("pipeline: config %q: %w", path, err)
	}
	defer f.Close()
	return LoadJSON(f)
}

// Level parses LogLevel. An empty level is info.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(c.LogLevel) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("pipeline: log_level %q: %w", c.LogLevel, ErrInvalidConfig)
	}
	return l, nil
}

// Validate reports every invalid field, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("pipeline: "+format+": %w", append(args, ErrInvalidConfig)...))
	}
	if strings.TrimSpace(c.RootAssetPath) == "" {
		bad("root_asset_path is empty")
	}
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		bad("test_fraction %v not in (0,1)", c.TestFraction)
	}
	if !(c.ValidationFraction > 0 && c.ValidationFraction < 1) {
		bad("validation_fraction %v not in (0,1)", c.ValidationFraction)
	}
	if !slices.Contains(bottleneck.Architectures(), c.ArchitectureID) {
		bad("architecture %q not one of %v", c.ArchitectureID, bottleneck.Architectures())
	}
	if c.ArchitectureID == bottleneck.ONNX && c.OnnxModelPath == "" {
		bad("architecture %q needs onnx_model_path", c.ArchitectureID)
	}
	if c.BatchPreviewSize < 0 {
		bad("batch_preview_size %d is negative", c.BatchPreviewSize)
	}
	if c.Epochs < 0 {
		bad("epochs %d is negative", c.Epochs)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) bottleneckOptions() *bottleneck.Options {
	return &bottleneck.Options{OnnxModelPath: c.OnnxModelPath, OnnxLibraryPath: c.OnnxLibraryPath}
}
