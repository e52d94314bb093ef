package bottleneck

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultOnnxInputSize  = 224
	defaultOnnxOutputSize = 1000
	onnxLevels            = 16
)

// onnxNet runs a pretrained convolutional backbone and quantizes its
// embedding into features. The session reuses its tensors, so Bottleneck
// calls are serialized.
type onnxNet struct {
	mu      sync.Mutex
	id      string
	size    int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newOnnx(opts *Options) (Extractor, error) {
	if opts.OnnxModelPath == "" {
		return nil, errors.New("bottleneck: onnx: model path is required")
	}
	size := opts.OnnxInputSize
	if size <= 0 {
		size = defaultOnnxInputSize
	}
	outSize := opts.OnnxOutputSize
	if outSize <= 0 {
		outSize = defaultOnnxOutputSize
	}

	id, err := onnxCacheID(opts.OnnxModelPath, size, outSize)
	if err != nil {
		return nil, err
	}

	if opts.OnnxLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.OnnxLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("bottleneck: onnx: initialize environment: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("bottleneck: onnx: input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(outSize)))
	if err != nil {
		input.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("bottleneck: onnx: output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(opts.OnnxModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		output.Destroy()
		input.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("bottleneck: onnx: session %q: %w", opts.OnnxModelPath, err)
	}
	return &onnxNet{id: id, size: size, session: session, input: input, output: output}, nil
}

func (o *onnxNet) Name() string {
	return ONNX
}

func (o *onnxNet) CacheID() string {
	return o.id
}

// onnxCacheID derives the cache id of a backbone from the model file content
// and the tensor sizes: onnx-<12 hex digits>.
func onnxCacheID(modelPath string, inputSize, outputSize int) (string, error) {
	f, err := os.Open(modelPath)
	if err != nil {
		return "", fmt.Errorf("bottleneck: onnx: model %q: %w", modelPath, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("bottleneck: onnx: model %q: %w", modelPath, err)
	}
	fmt.Fprintf(h, "|%d|%d", inputSize, outputSize)
	return fmt.Sprintf("%s-%x", ONNX, h.Sum(nil)[:6]), nil
}

// fillCHW writes img as normalized planar RGB into dst.
func fillCHW(dst []float32, img image.Image, size int) {
	small := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	b := small.Bounds()
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := small.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*size + x
			dst[i] = float32(r) / 65535.0
			dst[plane+i] = float32(g) / 65535.0
			dst[2*plane+i] = float32(bl) / 65535.0
		}
	}
}

// quantize maps an activation to one of onnxLevels buckets.
func quantize(v float32) uint32 {
	l := int(v*4) + onnxLevels/2
	if l < 0 {
		l = 0
	}
	if l >= onnxLevels {
		l = onnxLevels - 1
	}
	return uint32(l)
}

func (o *onnxNet) Bottleneck(img image.Image) ([]uint32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fillCHW(o.input.GetData(), img, o.size)
	if err := o.session.Run(); err != nil {
		return nil, fmt.Errorf("bottleneck: onnx: run: %w", err)
	}
	emb := o.output.GetData()
	out := make([]uint32, len(emb))
	for i, v := range emb {
		out[i] = quantize(v) | uint32(i)<<8
	}
	return out, nil
}

func (o *onnxNet) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.input != nil {
		o.input.Destroy()
	}
	if o.output != nil {
		o.output.Destroy()
	}
	if o.session != nil {
		o.session.Destroy()
	}
	o.input, o.output, o.session = nil, nil, nil
	return ort.DestroyEnvironment()
}
