package gloam

import (
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// WorkspaceStream renders one workspace. The default stream of each
// workspace draws into the output's back buffer; streams created with
// NewWorkspaceStream own an offscreen buffer, for plugins that show several
// workspaces at once.
type WorkspaceStream struct {
	WS             image.Point
	Running        bool
	ScaleX, ScaleY float64

	offscreen bool
	fb        Framebuffer
}

// StreamEvent is emitted by StreamPre and StreamPost. Damage is in
// workspace-local coordinates; StreamPre handlers may grow it.
type StreamEvent struct {
	Stream *WorkspaceStream
	Damage *Region
	Target RenderTarget
}

// NewWorkspaceStream creates an offscreen stream for ws.
func NewWorkspaceStream(ws image.Point) *WorkspaceStream {
	return &WorkspaceStream{WS: ws, ScaleX: 1, ScaleY: 1, offscreen: true}
}

// Texture returns the offscreen buffer, or nil for default streams and
// streams that never ran.
func (s *WorkspaceStream) Texture() *ebiten.Image {
	return s.fb.Texture()
}

// Release frees the offscreen buffer.
func (s *WorkspaceStream) Release() {
	s.fb.Release()
}

// Stream returns the default stream of ws.
func (o *Output) Stream(ws image.Point) *WorkspaceStream {
	s, ok := o.streams[ws]
	if !ok {
		s = &WorkspaceStream{WS: ws, ScaleX: 1, ScaleY: 1}
		o.streams[ws] = s
	}
	return s
}

// CurrentStream returns the stream composited last, or nil.
func (o *Output) CurrentStream() *WorkspaceStream { return o.current }

// WorkspaceBox returns the area of ws in output coordinates, relative to the
// current workspace.
func (o *Output) WorkspaceBox(ws image.Point) Box {
	cur := o.workspace.Current()
	return Box{
		X:      (ws.X - cur.X) * o.width,
		Y:      (ws.Y - cur.Y) * o.height,
		Width:  o.width,
		Height: o.height,
	}
}

// WorkspaceDamage returns the part of the frame damage that falls on ws, in
// workspace-local coordinates.
func (o *Output) WorkspaceDamage(ws image.Point) Region {
	box := o.WorkspaceBox(ws)
	d := o.frame.Clone()
	d.IntersectBox(box)
	d.Translate(-box.X, -box.Y)
	return d
}

func (o *Output) streamTarget(s *WorkspaceStream) (RenderTarget, error) {
	if s.offscreen {
		if _, err := s.fb.Allocate(o.renderer, o.width, o.height); err != nil {
			return RenderTarget{}, fmt.Errorf("workspace stream %v: %w", s.WS, err)
		}
		s.fb.Geometry = Box{Width: o.width, Height: o.height}
		s.fb.Scale = 1
		return s.fb.Bind(), nil
	}
	if !o.back.Valid() {
		return RenderTarget{}, fmt.Errorf("workspace stream %v: %w", s.WS, ErrNotAllocated)
	}
	return o.back.Bind(), nil
}

// StreamStart starts s and repaints its whole workspace.
func (o *Output) StreamStart(s *WorkspaceStream) error {
	s.Running = true
	s.ScaleX, s.ScaleY = 1, 1
	return o.renderer.Run(func() error {
		if _, err := o.streamTarget(s); err != nil {
			return err
		}
		o.frame.UnionBox(o.WorkspaceBox(s.WS))
		return o.streamUpdate(s, 1, 1)
	})
}

// StreamUpdate repaints the damaged part of the workspace of s. A scale
// change repaints the whole workspace.
func (o *Output) StreamUpdate(s *WorkspaceStream, scaleX, scaleY float64) error {
	return o.renderer.Run(func() error {
		return o.streamUpdate(s, scaleX, scaleY)
	})
}

// StreamStop marks s as stopped.
func (o *Output) StreamStop(s *WorkspaceStream) {
	s.Running = false
}

type streamItem struct {
	view   *View
	dx, dy int
	damage Region
}

func (o *Output) streamUpdate(s *WorkspaceStream, scaleX, scaleY float64) error {
	box := o.WorkspaceBox(s.WS)
	damage := o.WorkspaceDamage(s.WS)
	if damage.IsEmpty() {
		return nil
	}
	if scaleX != s.ScaleX || scaleY != s.ScaleY {
		damage.UnionBox(Box{Width: o.width, Height: o.height})
		s.ScaleX, s.ScaleY = scaleX, scaleY
	}

	target, err := o.streamTarget(s)
	if err != nil {
		return err
	}
	ev := &StreamEvent{Stream: s, Damage: &damage, Target: target}
	o.StreamPre.Emit(ev)

	// Views come top to bottom; shell views ignore the workspace offset.
	var items []streamItem
	for _, v := range o.workspace.ViewsOn(s.WS) {
		if !v.Visible() {
			continue
		}
		var dx, dy int
		if v.Role != RoleShell {
			dx, dy = box.X, box.Y
		}
		d := damage.Clone()
		d.IntersectBox(v.BoundingBox().Translate(-dx, -dy))
		if d.IsEmpty() {
			continue
		}
		items = append(items, streamItem{view: v, dx: dx, dy: dy, damage: d})
	}

	target.ClearRegion(damage, ColorBlack)
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		d := it.damage
		d.Translate(it.dx, it.dy)
		if _, err := it.view.RenderTransformed(target.Translated(it.dx, it.dy), d); err != nil {
			return err
		}
	}

	o.StreamPost.Emit(ev)
	return nil
}
