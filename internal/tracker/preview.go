package tracker

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// Preview displays frames and reads key presses.
type Preview interface {
	Show(frame *gocv.Mat)
	// WaitKey waits up to ms milliseconds for a key and returns its code, or -1.
	WaitKey(ms int) int
	Close() error
}

// WindowPreview is a Preview backed by a HighGUI window.
type WindowPreview struct {
	win *gocv.Window
}

// NewWindowPreview opens a window with the given title.
func NewWindowPreview(title string) *WindowPreview {
	return &WindowPreview{win: gocv.NewWindow(title)}
}

func (p *WindowPreview) Show(frame *gocv.Mat) {
	p.win.IMShow(*frame)
}

func (p *WindowPreview) WaitKey(ms int) int {
	return p.win.WaitKey(ms)
}

func (p *WindowPreview) Close() error {
	return p.win.Close()
}

var (
	landmarkColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	connectionColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	fingertipColor  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

const fingertipRadius = 10

// drawHand overlays the hand skeleton and marks the index fingertip with a
// filled circle.
func drawHand(frame *gocv.Mat, hand *detector.HandLandmarks) {
	w, h := frame.Cols(), frame.Rows()

	var px [detector.NumLandmarks]image.Point
	for i := range px {
		px[i] = hand.Pixel(i, w, h)
	}

	for _, c := range detector.Connections {
		gocv.Line(frame, px[c[0]], px[c[1]], connectionColor, 2)
	}
	for _, p := range px {
		gocv.Circle(frame, p, 3, landmarkColor, -1)
	}
	gocv.Circle(frame, px[detector.IndexTip], fingertipRadius, fingertipColor, -1)
}
