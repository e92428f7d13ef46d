package services

import "image"

func SetBlurHashEncoder(fn func(x, y int, img image.Image) (string, error)) (restore func()) {
	prev := encodeBlurHash
	encodeBlurHash = fn
	return func() { encodeBlurHash = prev }
}
