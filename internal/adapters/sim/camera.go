package sim

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand/v2"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// Camera renders a gradient with a moving block and encodes it as JPEG.
type Camera struct {
	width, height int
	failRate      float64
	rng           *rand.Rand
	shot          int
}

func NewCamera(width, height int, failRate float64, seed uint64) *Camera {
	return &Camera{
		width:    width,
		height:   height,
		failRate: failRate,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (c *Camera) Capture(ctx context.Context) (domain.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, false, err
	}
	if c.rng.Float64() < c.failRate {
		return domain.Frame{}, false, nil
	}
	c.shot++

	img := image.NewGray(image.Rect(0, 0, c.width, c.height))
	bx := (c.shot * 17) % c.width
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width; x++ {
			v := uint8((x + y) * 255 / (c.width + c.height))
			if x >= bx && x < bx+c.width/8 && y > c.height/3 && y < 2*c.height/3 {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return domain.Frame{}, false, err
	}
	return domain.Frame{Bytes: buf.Bytes(), Size: buf.Len(), Width: c.width, Height: c.height}, true, nil
}

var _ ports.Camera = (*Camera)(nil)
