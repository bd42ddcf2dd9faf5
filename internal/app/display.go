package app

import (
	"fmt"
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// DisplayPresenter shows the current activity on an SSD1306 OLED.
type DisplayPresenter struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// NewDisplayPresenter opens the I2C bus ("" = first available) and shows
// the waiting screen.
func NewDisplayPresenter(busName string) (*DisplayPresenter, error) {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on I2C bus %q", busName)

	d := &DisplayPresenter{bus: bus, dev: dev}
	d.Present(ZeroMessage())
	return d, nil
}

func (d *DisplayPresenter) Present(msg ResultMessage) {
	img := RenderDisplay(msg)
	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: draw error: %v", err)
	}
}

// Close blanks the display and releases the bus.
func (d *DisplayPresenter) Close() error {
	if err := d.dev.Halt(); err != nil {
		log.Printf("display: halt error: %v", err)
	}
	return d.bus.Close()
}

// RenderDisplay draws msg into a 128x64 monochrome frame.
func RenderDisplay(msg ResultMessage) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	line := func(row int, text string) {
		drawer.Dot = fixed.P(0, 13*(row+1))
		drawer.DrawString(text)
	}

	switch {
	case msg.Error != "":
		line(0, "Activity")
		line(1, "Error ("+msg.Backend+")")
		line(2, fmt.Sprintf("%dms", msg.ElapsedMillis))
	case !msg.OK():
		line(1, "Activity")
		line(2, "Waiting...")
	default:
		line(0, msg.Label)
		line(1, fmt.Sprintf("p=%.2f %5dms", msg.Probability, msg.ElapsedMillis))
		line(2, "src: "+msg.Backend)
	}
	line(3, fmt.Sprintf("in flight: %d", msg.InFlight))

	return img
}
