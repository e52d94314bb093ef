package bottleneck

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNewUnknown(t *testing.T) {
	_, err := New("resnet_v2_101", nil)
	assert.ErrorIs(t, err, ErrUnknownArchitecture)
}

func TestOnnxRequiresModel(t *testing.T) {
	_, err := New(ONNX, &Options{})
	assert.Error(t, err)
}

func TestOnnxCacheID(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "mobilenet.onnx")
	b := filepath.Join(dir, "resnet.onnx")
	require.NoError(t, os.WriteFile(a, []byte("backbone a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("backbone b"), 0o644))

	idA, err := onnxCacheID(a, 224, 1000)
	require.NoError(t, err)
	assert.Regexp(t, `^onnx-[0-9a-f]{12}$`, idA)

	again, err := onnxCacheID(a, 224, 1000)
	require.NoError(t, err)
	assert.Equal(t, idA, again)

	idB, err := onnxCacheID(b, 224, 1000)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB, "other model file")

	idSize, err := onnxCacheID(a, 299, 1000)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idSize, "other input size")

	idOut, err := onnxCacheID(a, 224, 1280)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idOut, "other output size")

	_, err = onnxCacheID(filepath.Join(dir, "missing.onnx"), 224, 1000)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArchitectures(t *testing.T) {
	assert.Equal(t, []string{HashNet13, HashNet28, ONNX}, Architectures())
}

func TestHashNet(t *testing.T) {
	for _, arch := range []string{HashNet13, HashNet28} {
		t.Run(arch, func(t *testing.T) {
			e, err := New(arch, nil)
			require.NoError(t, err)
			defer e.Close()
			assert.Equal(t, arch, e.Name())
			assert.Equal(t, arch, e.CacheID())

			dark, err := e.Bottleneck(solid(64, 48, color.Black))
			require.NoError(t, err)
			light, err := e.Bottleneck(solid(20, 30, color.White))
			require.NoError(t, err)

			n := e.(*hashNet).Len()
			require.Len(t, dark, n)
			require.Len(t, light, n)
			for i := range dark {
				assert.Equal(t, uint32(i), dark[i]>>8, "position is encoded above the window")
				assert.Equal(t, uint32(0), dark[i]&0xFF)
				assert.Equal(t, uint32(0xFF), light[i]&0xFF)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, uint32(0), quantize(-100))
	assert.Equal(t, uint32(onnxLevels/2), quantize(0))
	assert.Equal(t, uint32(onnxLevels-1), quantize(100))
}

func TestCache(t *testing.T) {
	fs := memfs.New()
	c := NewCache(fs, "/ws", HashNet13)
	key := Key([]byte("image bytes"))

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []uint32{1, 2, 3, 0xFFFFFFFF}
	require.NoError(t, c.Put(key, want))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, err = fs.Stat("/ws/" + HashNet13 + "/" + key + cacheExt)
	assert.NoError(t, err)

	entries, err := fs.ReadDir("/ws/" + HashNet13)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestCacheTruncatedEntryIsMiss(t *testing.T) {
	fs := memfs.New()
	c := NewCache(fs, "/ws", HashNet13)
	key := Key([]byte("interrupted"))

	for _, b := range [][]byte{{}, {9, 0}, {9, 0, 0, 0, 1}} {
		require.NoError(t, util.WriteFile(fs, c.path(key), b, 0o644))
		_, ok, err := c.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, "truncated entry %v", b)
	}

	require.NoError(t, c.Put(key, []uint32{4, 5}))
	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint32{4, 5}, got)
}

func TestCacheConcurrentSameKey(t *testing.T) {
	fs := osfs.New(t.TempDir())
	c := NewCache(fs, "ws", HashNet28)
	key := Key([]byte("duplicate image"))

	want := make([]uint32, 729)
	for i := range want {
		want[i] = uint32(i)<<8 | 0xFF
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				got, ok, err := c.Get(key)
				if err != nil {
					return err
				}
				if ok && len(got) != len(want) {
					return fmt.Errorf("partial entry of %d features", len(got))
				}
				if err := c.Put(key, want); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	entries, err := fs.ReadDir(filepath.Join("ws", HashNet28))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
