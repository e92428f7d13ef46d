package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const blurHashSize = 64

var encodeBlurHash = blurhash.Encode

// imageInfo is what can be learned about an upload locally before the server
// sees it.
type imageInfo struct {
	Width    int
	Height   int
	BlurHash string
}

// inspect decodes data far enough to report its dimensions and a BlurHash
// placeholder. Formats without a registered decoder return an error and the
// caller keeps the item anyway. Dimensions are set whenever decoding worked,
// even if the placeholder failed.
func inspect(data []byte) (imageInfo, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return imageInfo{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	info := imageInfo{Width: b.Dx(), Height: b.Dy()}

	hash, err := encodeBlurHash(4, 3, shrink(img))
	if err != nil {
		return info, fmt.Errorf("encode blurhash: %w", err)
	}
	info.BlurHash = hash

	return info, nil
}

// shrink scales img down to fit blurHashSize with nearest-neighbour sampling.
func shrink(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= blurHashSize && h <= blurHashSize {
		return img
	}

	dw, dh := blurHashSize, blurHashSize
	if w > h {
		dh = max(1, h*blurHashSize/w)
	} else {
		dw = max(1, w*blurHashSize/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			dst.Set(x, y, img.At(b.Min.X+x*w/dw, b.Min.Y+y*h/dh))
		}
	}

	return dst
}
