package renderer

import (
	"image/color"

	"golang.org/x/image/colornames"

	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

const checkerboardSize = 16

// DefaultImages are small sampled images available before any asset loads.
type DefaultImages struct {
	White        *vulkan.AllocatedImage
	Grey         *vulkan.AllocatedImage
	Black        *vulkan.AllocatedImage
	Checkerboard *vulkan.AllocatedImage
}

func packRGBA(c color.RGBA) []byte {
	return []byte{c.R, c.G, c.B, c.A}
}

// checkerboardPixels alternates magenta and black texels, the usual
// missing-texture pattern.
func checkerboardPixels() []byte {
	pixels := make([]byte, 0, checkerboardSize*checkerboardSize*4)
	for y := 0; y < checkerboardSize; y++ {
		for x := 0; x < checkerboardSize; x++ {
			if (x+y)%2 == 0 {
				pixels = append(pixels, packRGBA(colornames.Magenta)...)
			} else {
				pixels = append(pixels, packRGBA(colornames.Black)...)
			}
		}
	}
	return pixels
}

func createDefaultImages(ra *vulkan.ResourceAllocator, deletion *vulkan.DeletionQueue) (d *DefaultImages, err error) {
	upload := func(name string, pixels []byte, size uint32) *vulkan.AllocatedImage {
		if err != nil {
			return nil
		}
		var img *vulkan.AllocatedImage
		extent := vulkan.Extent3D{Width: size, Height: size, Depth: 1}
		img, err = ra.UploadImage(pixels, vulkan.FormatR8g8b8a8Unorm, extent, vulkan.ImageUsageSampled)
		if err != nil {
			return nil
		}
		deletion.Push("default image "+name, func() { _ = ra.DestroyImage(img) })
		return img
	}

	d = &DefaultImages{
		White:        upload("white", packRGBA(colornames.White), 1),
		Grey:         upload("grey", packRGBA(colornames.Grey), 1),
		Black:        upload("black", packRGBA(colornames.Black), 1),
		Checkerboard: upload("checkerboard", checkerboardPixels(), checkerboardSize),
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
