package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/imageclassifier/bottleneck"
	"github.com/neurlang/imageclassifier/datasets"
	"github.com/neurlang/imageclassifier/learning"
	"github.com/neurlang/imageclassifier/progress"
)

func pngImage(t *testing.T, rng *rand.Rand, lo, ro uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			base := lo
			if x >= 12 {
				base = ro
			}
			img.SetGray(x, y, color.Gray{Y: base + uint8(rng.Intn(40))})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// assets writes n images of each of three classes. In folder mode they go
// to /assets/<class>/, otherwise flat into /assets named <class><i>.png.
func assets(t *testing.T, fsys billy.Filesystem, n int, folders bool) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	for _, c := range []struct {
		label  string
		lo, ro uint8
	}{{"dark", 0, 0}, {"light", 210, 210}, {"split", 0, 210}} {
		for i := 0; i < n; i++ {
			path := filepath.Join("/assets", c.label, fmt.Sprintf("%s%d.png", c.label, i))
			if !folders {
				path = filepath.Join("/assets", fmt.Sprintf("%s%d.png", c.label, i))
			}
			require.NoError(t, util.WriteFile(fsys, path, pngImage(t, rng, c.lo, c.ro), 0o644))
		}
	}
	require.NoError(t, util.WriteFile(fsys, "/assets/README.txt", []byte("not an image"), 0o644))
}

func testConfig() Config {
	cfg := Defaults()
	cfg.RootAssetPath = "/assets"
	cfg.WorkspacePath = "/workspace"
	cfg.Seed = 42
	cfg.Epochs = 3
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.3, cfg.TestFraction)
	assert.Equal(t, 0.5, cfg.ValidationFraction)
	assert.Equal(t, 10, cfg.BatchPreviewSize)
	assert.Equal(t, bottleneck.HashNet13, cfg.ArchitectureID)
	assert.True(t, cfg.UseFolderNameAsLabel)
	assert.True(t, cfg.ReuseBottlenecks)
	assert.True(t, strings.HasSuffix(cfg.WorkspacePath, filepath.Join("imageclassifier", "workspace")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty root", func(c *Config) { c.RootAssetPath = " " }},
		{"test fraction zero", func(c *Config) { c.TestFraction = 0 }},
		{"test fraction one", func(c *Config) { c.TestFraction = 1 }},
		{"validation fraction", func(c *Config) { c.ValidationFraction = 1.5 }},
		{"architecture", func(c *Config) { c.ArchitectureID = "resnet_v2_101" }},
		{"onnx without model", func(c *Config) { c.ArchitectureID = bottleneck.ONNX }},
		{"batch size", func(c *Config) { c.BatchPreviewSize = -1 }},
		{"epochs", func(c *Config) { c.Epochs = -2 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			_, err := New(cfg, WithFilesystem(memfs.New()))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON(strings.NewReader(`{"root_asset_path": "/data", "seed": 7, "log_level": "debug"}`))
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.RootAssetPath)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 0.3, cfg.TestFraction, "unset fields keep defaults")
	require.NoError(t, cfg.Validate())

	_, err = LoadJSON(strings.NewReader(`{"root_asset_path": "/data", "unknown": 1}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	mfs := memfs.New()
	require.NoError(t, util.WriteFile(mfs, "/etc/config.json", []byte(`{"batch_preview_size": 3}`), 0o644))
	cfg, err = LoadFile(mfs, "/etc/config.json")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.BatchPreviewSize)

	_, err = LoadFile(mfs, "/etc/missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "debug"
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", l.String())
	cfg.LogLevel = ""
	l, err = cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "INFO", l.String())
}

func TestLoad(t *testing.T) {
	for _, folders := range []bool{true, false} {
		t.Run(fmt.Sprint("folders=", folders), func(t *testing.T) {
			mfs := memfs.New()
			assets(t, mfs, 4, folders)
			cfg := testConfig()
			cfg.UseFolderNameAsLabel = folders
			p, err := New(cfg, WithFilesystem(mfs))
			require.NoError(t, err)

			d, err := p.Load()
			require.NoError(t, err)
			require.Len(t, d, 12)
			assert.Equal(t, map[string]int{"dark": 4, "light": 4, "split": 4}, d.Count())
			for _, s := range d {
				assert.Equal(t, ".png", filepath.Ext(s.Path))
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	mfs := memfs.New()
	p, err := New(testConfig(), WithFilesystem(mfs))
	require.NoError(t, err)
	_, err = p.Load()
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, mfs.MkdirAll("/assets/empty", 0o755))
	_, err = p.Load()
	assert.ErrorIs(t, err, datasets.ErrEmptyDataset)
}

func TestPrepare(t *testing.T) {
	mfs := memfs.New()
	assets(t, mfs, 10, true)
	p, err := New(testConfig(), WithFilesystem(mfs))
	require.NoError(t, err)
	d, err := p.Load()
	require.NoError(t, err)

	a, err := p.Prepare(d)
	require.NoError(t, err)
	b, err := p.Prepare(d)
	require.NoError(t, err)
	assert.Equal(t, a.Split, b.Split, "a fixed seed is reproducible")

	assert.Len(t, a.Train, 21)
	assert.Len(t, a.Validation, 4)
	assert.Len(t, a.Test, 5)
	assert.Equal(t, 3, a.Keys.Len())

	seen := map[string]bool{}
	for _, part := range []datasets.Dataset{a.Train, a.Validation, a.Test} {
		for _, s := range part {
			assert.False(t, seen[s.Path], s.Path)
			seen[s.Path] = true
		}
	}
	assert.Len(t, seen, len(d))

	_, err = p.Prepare(d[:1])
	assert.ErrorIs(t, err, datasets.ErrEmptyDataset)
}

func TestRun(t *testing.T) {
	mfs := memfs.New()
	assets(t, mfs, 10, true)
	cfg := testConfig()
	cfg.ModelPath = "/models/imageClassifier.zip"
	cfg.TestOnTrainSet = true

	var out bytes.Buffer
	rec := &progress.Recorder{}
	p, err := New(cfg, WithFilesystem(mfs), WithOutput(&out), WithSink(rec), WithThreads(1))
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, res.Split.Len())
	assert.Equal(t, 5, res.Evaluation.Total)
	assert.Len(t, res.Batch, 5)
	assert.Equal(t, res.Split.Test[0].Path, res.Single.Path)

	text := out.String()
	assert.Contains(t, text, HeaderSingle+"\n"+FormatPrediction(res.Single)+"\n")
	assert.Contains(t, text, HeaderBatch+"\n")
	for _, pr := range res.Batch {
		assert.Contains(t, text, FormatPrediction(pr))
	}

	var bottlenecks, training int
	for _, m := range rec.Messages() {
		switch {
		case strings.HasPrefix(m, "Phase: Bottleneck Computation, Dataset used: "):
			bottlenecks++
		case strings.HasPrefix(m, "Phase: Training, Dataset used: "):
			training++
		}
	}
	assert.Equal(t, 25, bottlenecks, "train and validation images")
	assert.Equal(t, 4, training, "three epochs and the train set test")

	_, err = mfs.Stat(cfg.ModelPath)
	require.NoError(t, err)
	m, err := learning.LoadFile(cfg.ModelPath, learning.Options{FS: mfs})
	require.NoError(t, err)
	defer m.Close()
	assert.ElementsMatch(t, []string{"dark", "light", "split"}, m.Labels())

	entries, err := mfs.ReadDir("/workspace/" + bottleneck.HashNet13)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRunBatchPreviewSize(t *testing.T) {
	mfs := memfs.New()
	assets(t, mfs, 10, true)
	cfg := testConfig()
	cfg.BatchPreviewSize = 2

	var out bytes.Buffer
	p, err := New(cfg, WithFilesystem(mfs), WithOutput(&out), WithThreads(1))
	require.NoError(t, err)
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Split.Test, 5)
	require.Len(t, res.Batch, 2)
	assert.Equal(t, res.Split.Test[0].Path, res.Batch[0].Path)
	assert.Equal(t, res.Split.Test[1].Path, res.Batch[1].Path)

	_, batch, found := strings.Cut(out.String(), HeaderBatch+"\n")
	require.True(t, found)
	lines := strings.Split(strings.TrimSuffix(batch, "\n"), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		assert.Equal(t, FormatPrediction(res.Batch[i]), line)
	}
}

func TestRunCancelled(t *testing.T) {
	mfs := memfs.New()
	assets(t, mfs, 4, true)
	p, err := New(testConfig(), WithFilesystem(mfs))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatPrediction(t *testing.T) {
	s := FormatPrediction(learning.Prediction{
		Path:           "/assets/dog/dog1.jpg",
		Label:          "dog",
		PredictedLabel: "cat",
	})
	assert.Equal(t, "Image: dog1.jpg | Actual Value: dog | Predicted Value: cat", s)
}
