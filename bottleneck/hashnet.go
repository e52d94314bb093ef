package bottleneck

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// levelShift quantizes 8 bit gray to 4 levels.
const levelShift = 6

type resampler func(img image.Image, size int) *image.Gray

func resizeLanczos(img image.Image, size int) *image.Gray {
	small := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	return toGray(small)
}

func resizeCatmullRom(img image.Image, size int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Pix[y*g.Stride+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return g
}

// hashNet downsamples to a size x size gray image and emits one feature per
// overlapping 2x2 pixel window: the four quantized pixels in the low byte and
// the window position above it.
type hashNet struct {
	name   string
	size   int
	sample resampler
}

func newHashNet(name string, size int, sample resampler) *hashNet {
	return &hashNet{name: name, size: size, sample: sample}
}

func (h *hashNet) Name() string {
	return h.name
}

// CacheID is the architecture id, hashnet features depend on nothing else.
func (h *hashNet) CacheID() string {
	return h.name
}

// Len returns the number of features per image.
func (h *hashNet) Len() int {
	return (h.size - 1) * (h.size - 1)
}

func (h *hashNet) Bottleneck(img image.Image) ([]uint32, error) {
	g := h.sample(img, h.size)
	px := func(x, y int) uint32 {
		return uint32(g.Pix[y*g.Stride+x] >> levelShift)
	}
	out := make([]uint32, 0, h.Len())
	for y := 0; y < h.size-1; y++ {
		for x := 0; x < h.size-1; x++ {
			var window = px(x, y) | px(x+1, y)<<2 | px(x, y+1)<<4 | px(x+1, y+1)<<6
			out = append(out, window|uint32(len(out))<<8)
		}
	}
	return out, nil
}

func (h *hashNet) Close() error {
	return nil
}
