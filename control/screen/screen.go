// Package screen keeps a picture of what the clock's digits show, for debugging the rest of the
// program without looking at (or having) the hardware, and can copy the digits to a MAX7219
// display on the SPI bus.
package screen

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/max7219"
)

const (
	digits             = 4
	glyphWidth         = 7 // basicfont.Face7x13
	glyphHeight        = 13
	previewScale       = 8 // Size of one font pixel in the rendered image.
	previewPixelBorder = 2 // Border around right and bottom of pixel, to look like a segment display.
)

var (
	onColor  = color.NRGBA{R: 0xff, G: 0x30, B: 0x10, A: 0xff}
	offColor = color.NRGBA{R: 0x10, G: 0x00, B: 0x00, A: 0xff}
)

// Screen is the preview of the four digits plus the optional mirror display.
type Screen struct {
	mirror *max7219.Dev

	imageMu sync.Mutex
	image   *image.NRGBA // must hold imageMu to read or write.
	text    string       // must hold imageMu to read or write.
}

// NewScreen returns a Screen.  If p is nil, there is no mirror display and only the preview is
// kept.
func NewScreen(p spi.Port) (*Screen, error) {
	s := &Screen{
		image: image.NewNRGBA(image.Rect(0, 0, digits*glyphWidth*previewScale, glyphHeight*previewScale)),
	}
	s.draw("")
	if p == nil {
		return s, nil
	}
	dev, err := max7219.NewSPI(p, 1, digits)
	if err != nil {
		return nil, fmt.Errorf("init max7219: %w", err)
	}
	if err := dev.SetDecode(max7219.DecodeB); err != nil {
		return nil, fmt.Errorf("set max7219 decode mode: %w", err)
	}
	if err := dev.SetIntensity(1); err != nil {
		return nil, fmt.Errorf("set max7219 intensity: %w", err)
	}
	if err := dev.Clear(); err != nil {
		return nil, fmt.Errorf("clear max7219: %w", err)
	}
	s.mirror = dev
	return s, nil
}

// Show shows v (0..9999) with leading zeros.
func (s *Screen) Show(v int) error {
	if v < 0 {
		v = 0
	}
	if v > 9999 {
		v = 9999
	}
	text := fmt.Sprintf("%04d", v)
	s.draw(text)
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.Write([]byte(text)); err != nil {
		return fmt.Errorf("write to max7219: %w", err)
	}
	return nil
}

// Blank turns off every digit.
func (s *Screen) Blank() error {
	s.draw("")
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.Clear(); err != nil {
		return fmt.Errorf("blank max7219: %w", err)
	}
	return nil
}

// Text returns what is currently shown; "" when blank.
func (s *Screen) Text() string {
	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	return s.text
}

// ServeHTTP serves the current image as a PNG.
func (s *Screen) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	if err := png.Encode(w, s.image); err != nil {
		log.Printf("encoding image: %v", err)
	}
}

// draw renders text with the font and blows it up into the preview image.  Unlit pixels are
// drawn dimly, like an unlit LED segment.
func (s *Screen) draw(text string) {
	small := image.NewAlpha(image.Rect(0, 0, digits*glyphWidth, glyphHeight))
	drawer := &font.Drawer{
		Dst:  small,
		Src:  image.Opaque,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(0, basicfont.Face7x13.Ascent),
	}
	drawer.DrawString(text)

	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	s.text = text
	scale := previewScale
	for x := 0; x < small.Bounds().Dx(); x++ {
		for y := 0; y < small.Bounds().Dy(); y++ {
			c := offColor
			if small.AlphaAt(x, y).A > 0x80 {
				c = onColor
			}
			for destX := scale * x; destX < scale*(x+1); destX++ {
				for destY := scale * y; destY < scale*(y+1); destY++ {
					if destX < scale*(x+1)-previewPixelBorder && destY < scale*(y+1)-previewPixelBorder {
						s.image.SetNRGBA(destX, destY, c)
					} else {
						s.image.SetNRGBA(destX, destY, color.NRGBA{A: 0xff})
					}
				}
			}
		}
	}
}
