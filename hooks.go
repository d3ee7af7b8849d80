package gloam

import "slices"

// EffectHook runs at a fixed point of an output's repaint. Hooks are
// identified by pointer, so keep the *EffectHook used for AddEffect to remove
// it later.
type EffectHook func()

// PostHook reads the finished frame from src and writes the processed frame
// to dst. Both targets cover the whole output.
type PostHook func(src, dst RenderTarget)

// RenderHook replaces workspace compositing entirely and must redraw the
// whole target every frame.
type RenderHook func(target RenderTarget)

// hookList keeps hooks in registration order. Iteration goes over a copy so
// hooks may add or remove hooks while running; the change applies from the
// next pass.
type hookList[T comparable] struct {
	items []T
}

func (l *hookList[T]) add(h T) bool {
	if slices.Contains(l.items, h) {
		return false
	}
	l.items = append(l.items, h)
	return true
}

func (l *hookList[T]) remove(h T) bool {
	i := slices.Index(l.items, h)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

func (l *hookList[T]) snapshot() []T {
	return slices.Clone(l.items)
}

func (l *hookList[T]) len() int { return len(l.items) }

// postEntry is a registered post hook and the buffer it renders into.
type postEntry struct {
	hook    *PostHook
	removed bool
	target  Framebuffer
}
