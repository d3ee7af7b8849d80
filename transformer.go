package gloam

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
)

// Transformer changes how a view is drawn. Nodes are stacked on a view's
// TransformerChain; each node receives the previous node's output as src.
type Transformer interface {
	// BoundingBox returns the area covered after transforming region, a box
	// inside the view's untransformed geometry view.
	BoundingBox(view, region Box) Box
	// Render draws src, which covers the logical srcBox, into target. Only
	// the rectangles of damage need to be updated.
	Render(src *ebiten.Image, srcBox Box, damage Region, target RenderTarget)
}

// DamageTransformer is implemented by transformers that map damage in a way
// other than taking the bounding box of each rectangle.
type DamageTransformer interface {
	TransformDamage(view Box, damage *Region)
}

// PointTransformer is implemented by transformers that can map input
// coordinates through the transform.
type PointTransformer interface {
	TransformPoint(view Box, p PointF) PointF
	UntransformPoint(view Box, p PointF) PointF
}

// Releaser is implemented by transformers that own GPU resources. Release is
// called inside a render scope when the node leaves its chain. r is nil when
// the view is not on an output.
type Releaser interface {
	Release(r *Renderer)
}

type transformerNode struct {
	t    Transformer
	z    int
	name string
	fb   Framebuffer
}

// TransformerChain is the ordered list of transformers of one view, sorted by
// ascending z-order. The chain owns the intermediate framebuffer of each
// node.
type TransformerChain struct {
	view      *View
	nodes     []*transformerNode
	rendering bool
}

// Add inserts t after every node whose z-order is <= z. Names are unique
// within a chain.
func (c *TransformerChain) Add(t Transformer, z int, name string) error {
	if c.find(name) >= 0 {
		debugAssert(c.logger(), false, "transformer %q already on view", name)
		return fmt.Errorf("add transformer %q: %w", name, ErrDuplicateTransformer)
	}
	at := len(c.nodes)
	for i, n := range c.nodes {
		if n.z > z {
			at = i
			break
		}
	}
	node := &transformerNode{t: t, z: z, name: name}
	c.nodes = append(c.nodes, nil)
	copy(c.nodes[at+1:], c.nodes[at:])
	c.nodes[at] = node

	if c.view != nil {
		c.view.DamageWhole()
	}
	return nil
}

// Remove deletes the named node and frees its resources. It reports whether a
// node was removed. Removing while the chain is being rendered is a usage
// error.
func (c *TransformerChain) Remove(name string) bool {
	i := c.find(name)
	if i < 0 {
		return false
	}
	if !debugAssert(c.logger(), !c.rendering, "transformer %q removed while rendering", name) {
		return false
	}
	if c.view != nil {
		c.view.DamageWhole()
	}
	node := c.nodes[i]
	c.nodes = append(c.nodes[:i:i], c.nodes[i+1:]...)

	var o *Output
	if c.view != nil {
		o = c.view.output
	}
	release := func(r *Renderer) {
		node.fb.Release()
		if rel, ok := node.t.(Releaser); ok {
			rel.Release(r)
		}
	}
	if o == nil {
		release(nil)
		return true
	}
	_ = o.renderer.Run(func() error {
		release(o.renderer)
		return nil
	})
	o.DamageWholeIdle()
	return true
}

// Get returns the transformer registered under name, or nil.
func (c *TransformerChain) Get(name string) Transformer {
	if i := c.find(name); i >= 0 {
		return c.nodes[i].t
	}
	return nil
}

// Len returns the number of nodes.
func (c *TransformerChain) Len() int { return len(c.nodes) }

// Names returns node names in render order.
func (c *TransformerChain) Names() []string {
	out := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.name
	}
	return out
}

// All yields name and transformer pairs in ascending z-order.
func (c *TransformerChain) All() iter.Seq2[string, Transformer] {
	return func(yield func(string, Transformer) bool) {
		for _, n := range c.nodes {
			if !yield(n.name, n.t) {
				return
			}
		}
	}
}

func (c *TransformerChain) find(name string) int {
	for i, n := range c.nodes {
		if n.name == name {
			return i
		}
	}
	return -1
}

func (c *TransformerChain) logger() *slog.Logger {
	if c.view != nil && c.view.output != nil {
		return c.view.output.log
	}
	return nil
}

// boundingBox folds every node's bounding box over box.
func (c *TransformerChain) boundingBox(view, box Box) Box {
	for _, n := range c.nodes {
		box = n.t.BoundingBox(view, box)
	}
	return box
}

// transformDamage maps damage through every node in order.
func (c *TransformerChain) transformDamage(view Box, damage *Region) {
	for _, n := range c.nodes {
		if dt, ok := n.t.(DamageTransformer); ok {
			dt.TransformDamage(view, damage)
			continue
		}
		var out Region
		for b := range damage.All() {
			out.UnionBox(n.t.BoundingBox(view, b))
		}
		*damage = out
	}
}

func (c *TransformerChain) transformPoint(view Box, p PointF) PointF {
	for _, n := range c.nodes {
		if pt, ok := n.t.(PointTransformer); ok {
			p = pt.TransformPoint(view, p)
		}
	}
	return p
}

func (c *TransformerChain) untransformPoint(view Box, p PointF) PointF {
	for i := len(c.nodes) - 1; i >= 0; i-- {
		if pt, ok := c.nodes[i].t.(PointTransformer); ok {
			p = pt.UntransformPoint(view, p)
		}
	}
	return p
}

// render draws src through the chain. Intermediate nodes render their full
// bounding box into the chain-owned buffer; the last node draws straight
// into target, limited to damage.
func (c *TransformerChain) render(r *Renderer, view Box, src *ebiten.Image, srcBox Box, damage Region, target RenderTarget) error {
	if len(c.nodes) == 0 {
		DrawTexture(target, src, srcBox, damage, ebiten.ColorScale{})
		return nil
	}

	c.rendering = true
	defer func() { c.rendering = false }()

	last := len(c.nodes) - 1
	for i, n := range c.nodes {
		bbox := n.t.BoundingBox(view, srcBox)
		if i == last {
			d := damage.Clone()
			d.IntersectBox(bbox)
			if !d.IsEmpty() {
				n.t.Render(src, srcBox, d, target)
			}
			return nil
		}

		scale := target.scale()
		px := Box{Width: bbox.Width, Height: bbox.Height}.Scale(scale)
		if _, err := n.fb.Allocate(r, px.Width, px.Height); err != nil {
			return fmt.Errorf("transformer %q: %w", n.name, err)
		}
		n.fb.Geometry = bbox
		n.fb.Scale = scale
		n.fb.Clear(ColorTransparent)
		n.t.Render(src, srcBox, NewRegion(bbox), n.fb.Bind())

		src, srcBox = n.fb.Texture(), bbox
	}
	return nil
}

// releaseAll frees every node's buffer. Used when the view is destroyed.
func (c *TransformerChain) releaseAll(r *Renderer) {
	for _, n := range c.nodes {
		n.fb.Release()
		if rel, ok := n.t.(Releaser); ok {
			rel.Release(r)
		}
	}
	c.nodes = nil
}

// GetTransformer returns the transformer named name on v if it has type T.
func GetTransformer[T Transformer](v *View, name string) (T, bool) {
	t, ok := v.chain.Get(name).(T)
	return t, ok
}
