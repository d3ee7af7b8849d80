package gloam

import (
	"errors"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at render submission time.
type Color struct {
	R, G, B, A float64
}

var (
	// ColorBlack is the color cleared into damaged areas before compositing.
	ColorBlack = Color{0, 0, 0, 1}
	// ColorTransparent is the clear color of intermediate transformer buffers.
	ColorTransparent = Color{}
)

// toRGBA converts a Color to a premultiplied color.RGBA.
func (c Color) toRGBA() color.RGBA {
	a := clamp01(c.A)
	return color.RGBA{
		R: uint8(clamp01(c.R)*a*255 + 0.5),
		G: uint8(clamp01(c.G)*a*255 + 0.5),
		B: uint8(clamp01(c.B)*a*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

// ColorScale returns the color as an ebiten.ColorScale for tinting draws.
func (c Color) ColorScale() ebiten.ColorScale {
	var cs ebiten.ColorScale
	cs.ScaleWithColor(c.toRGBA())
	return cs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// WhitePixel is a 1x1 white image used for solid color fills.
var WhitePixel *ebiten.Image

func init() {
	WhitePixel = ebiten.NewImage(1, 1)
	WhitePixel.Fill(color.White)
}

// PointF is a point in logical output coordinates.
type PointF struct {
	X, Y float64
}

// Phase selects when an effect hook runs inside an output's repaint.
type Phase uint8

const (
	PhasePre     Phase = iota // before compositing; may add damage
	PhaseOverlay              // after compositing, before post hooks
	PhasePost                 // after the frame is swapped
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseOverlay:
		return "overlay"
	case PhasePost:
		return "post"
	default:
		return "unknown"
	}
}

// Transformer z-orders. Higher values render later (closer to the screen).
const (
	ZOrder2D        = 1   // simple 2D transforms
	ZOrder3D        = 2   // 3D transforms
	ZOrderHighLevel = 500 // special effects such as wobbly or fire
	ZOrderBlur      = 999 // blur; nothing should sit above it
)

// OutputState is the repaint state of an Output.
type OutputState uint8

const (
	StateIdle            OutputState = iota // nothing pending
	StateDamagePending                      // damage recorded, redraw not yet queued
	StateRedrawScheduled                    // idle callback queued
	StateCompositing                        // inside paint
	StatePresented                          // frame swapped, post hooks running
)

func (s OutputState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDamagePending:
		return "damage-pending"
	case StateRedrawScheduled:
		return "redraw-scheduled"
	case StateCompositing:
		return "compositing"
	case StatePresented:
		return "presented"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	ErrAllocation           = errors.New("gloam: texture allocation failed")
	ErrDuplicateTransformer = errors.New("gloam: duplicate transformer name")
	ErrNoOutput             = errors.New("gloam: view has no output")
	ErrNotAllocated         = errors.New("gloam: framebuffer not allocated")
	ErrUnknownPlugin        = errors.New("gloam: unknown plugin")
)
