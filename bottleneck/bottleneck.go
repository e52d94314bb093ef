// Package bottleneck implements the feature extraction architectures of the trainer
// and the workspace cache of computed bottleneck features.
package bottleneck

import (
	"errors"
	"fmt"
	"image"
	"sort"
)

// ErrUnknownArchitecture is returned by New for an unregistered architecture id.
var ErrUnknownArchitecture = errors.New("unknown architecture")

// Architecture ids.
const (
	HashNet13 = "hashnet13"
	HashNet28 = "hashnet28"
	ONNX      = "onnx"
)

// Extractor computes the bottleneck feature vector of an image. Features of
// one architecture always have the same length.
type Extractor interface {
	// Name returns the architecture id.
	Name() string

	// CacheID names the workspace cache folder of the extractor. Extractors
	// whose features differ for the same image have different cache ids.
	CacheID() string

	// Bottleneck computes the features of img.
	Bottleneck(img image.Image) ([]uint32, error)

	// Close releases resources held by the extractor.
	Close() error
}

// Options carry architecture specific settings.
type Options struct {
	// OnnxModelPath is the pretrained backbone used by the onnx architecture.
	OnnxModelPath string `json:"onnx_model_path"`

	// OnnxLibraryPath optionally points at the onnxruntime shared library.
	OnnxLibraryPath string `json:"onnx_library_path"`

	// OnnxInputSize is the square input edge of the backbone, 224 by default.
	OnnxInputSize int `json:"onnx_input_size"`

	// OnnxOutputSize is the length of the backbone embedding, 1000 by default.
	OnnxOutputSize int `json:"onnx_output_size"`
}

var architectures = map[string]func(*Options) (Extractor, error){
	HashNet13: func(*Options) (Extractor, error) { return newHashNet(HashNet13, 13, resizeLanczos), nil },
	HashNet28: func(*Options) (Extractor, error) { return newHashNet(HashNet28, 28, resizeCatmullRom), nil },
	ONNX:      newOnnx,
}

// Architectures lists the registered architecture ids.
func Architectures() []string {
	out := make([]string, 0, len(architectures))
	for k := range architectures {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New creates the extractor of architecture arch.
func New(arch string, opts *Options) (Extractor, error) {
	f, ok := architectures[arch]
	if !ok {
		return nil, fmt.Errorf("bottleneck: %q: %w", arch, ErrUnknownArchitecture)
	}
	if opts == nil {
		opts = &Options{}
	}
	return f(opts)
}
