package gloam

import (
	"image"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// OutputOptions configures NewOutput.
type OutputOptions struct {
	// Name identifies the output in logs and screenshots.
	Name string
	// Width and Height are the output size in pixels.
	Width, Height int
	// Loop dispatches repaints. Nil creates a private loop; hosts must then
	// call Loop().Dispatch once per tick.
	Loop *EventLoop
	// Workspace supplies view stacking. Nil uses a 1x1 WorkspaceSet.
	Workspace Workspace
	// Renderer configures texture allocation.
	Renderer RendererOptions
	// Logger is the base logger. Nil uses slog.Default().
	Logger *slog.Logger
	// ScreenshotDir receives PNGs queued with Screenshot. Empty means
	// "screenshots".
	ScreenshotDir string
}

// MinimizeEvent is emitted by ViewMinimized.
type MinimizeEvent struct {
	View      *View
	Minimized bool
}

// Output is the render manager of one display. It accumulates damage,
// schedules at most one repaint per event-loop tick, composites the current
// workspace and runs effect hooks around it.
//
// All methods must be called from the event loop goroutine.
type Output struct {
	// StartRendering fires when the last inhibitor is removed.
	StartRendering Signal[*Output]
	// Presented fires after every swap with the damage that was presented.
	Presented Signal[Region]
	// ViewMapped fires after a view is mapped on this output.
	ViewMapped Signal[*View]
	// ViewUnmapped fires before an unmapped view loses its surface. Handlers
	// may take a snapshot and Keep the view.
	ViewUnmapped Signal[*View]
	// ViewMinimized fires when a view is minimized or restored.
	ViewMinimized Signal[MinimizeEvent]
	// StreamPre fires before a workspace stream repaints; handlers may grow
	// the damage.
	StreamPre Signal[*StreamEvent]
	// StreamPost fires after a workspace stream repaints.
	StreamPost Signal[*StreamEvent]
	// FadeInRequest asks plugins to fade the output in.
	FadeInRequest Signal[*Output]

	name          string
	width, height int
	loop          *EventLoop
	renderer      *Renderer
	workspace     Workspace
	log           *slog.Logger

	state        OutputState
	pending      Region
	frame        Region
	lastDamage   Region
	redrawSource *IdleSource
	damageSource *IdleSource
	inPre        bool
	compositing  bool

	effects    [phaseCount]hookList[*EffectHook]
	posts      []*postEntry
	renderHook RenderHook
	autoRedraw int
	inhibit    int

	back      Framebuffer
	front     Framebuffer // last post hook target
	presented *ebiten.Image
	streams   map[image.Point]*WorkspaceStream
	current   *WorkspaceStream

	stats           FrameStats
	screenshotDir   string
	screenshotQueue []string
}

// NewOutput creates an output and schedules its first repaint.
func NewOutput(opts OutputOptions) *Output {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Name != "" {
		log = log.With("output", opts.Name)
	}
	ropts := opts.Renderer
	if ropts.Logger == nil {
		ropts.Logger = log
	}
	o := &Output{
		name:          opts.Name,
		width:         opts.Width,
		height:        opts.Height,
		loop:          opts.Loop,
		workspace:     opts.Workspace,
		renderer:      NewRenderer(ropts),
		log:           log,
		streams:       make(map[image.Point]*WorkspaceStream),
		screenshotDir: opts.ScreenshotDir,
	}
	if o.loop == nil {
		o.loop = NewEventLoop()
	}
	if o.workspace == nil {
		o.workspace = NewWorkspaceSet(1, 1, image.Pt(o.width, o.height))
	}
	if o.screenshotDir == "" {
		o.screenshotDir = "screenshots"
	}
	o.DamageWhole()
	return o
}

// Name returns the output name.
func (o *Output) Name() string { return o.name }

// Box returns the output area, {0, 0, width, height}.
func (o *Output) Box() Box { return Box{Width: o.width, Height: o.height} }

// Loop returns the event loop driving repaints.
func (o *Output) Loop() *EventLoop { return o.loop }

// Renderer returns the output's rendering context.
func (o *Output) Renderer() *Renderer { return o.renderer }

// Workspace returns the view stacking source.
func (o *Output) Workspace() Workspace { return o.workspace }

// Logger returns the output's logger.
func (o *Output) Logger() *slog.Logger { return o.log }

// State returns the repaint state.
func (o *Output) State() OutputState { return o.state }

// Stats returns lifetime frame counters.
func (o *Output) Stats() FrameStats { return o.stats }

// --- Damage and scheduling ---

// Damage marks b as needing a repaint.
func (o *Output) Damage(b Box) {
	if b.Empty() {
		return
	}
	o.pending.UnionBox(b)
	o.damaged()
}

// DamageRegion marks r as needing a repaint.
func (o *Output) DamageRegion(r Region) {
	if r.IsEmpty() {
		return
	}
	o.pending.Union(r)
	o.damaged()
}

// DamageWhole marks the whole output as needing a repaint.
func (o *Output) DamageWhole() {
	o.Damage(o.Box())
}

func (o *Output) damaged() {
	if o.state == StateIdle {
		o.state = StateDamagePending
	}
	// Damage from PRE hooks is folded into the frame being painted.
	if o.inPre {
		return
	}
	o.ScheduleRedraw()
}

// DamageWholeIdle damages the whole output from an idle callback. It is safe
// to call while rendering.
func (o *Output) DamageWholeIdle() {
	if o.damageSource != nil {
		return
	}
	o.damageSource = o.loop.AddIdle(func() {
		o.damageSource = nil
		o.DamageWhole()
	})
}

// ScheduleRedraw queues a repaint for the next dispatch. Calls before the
// repaint runs are coalesced.
func (o *Output) ScheduleRedraw() {
	if o.redrawSource != nil {
		return
	}
	o.redrawSource = o.loop.AddIdle(o.paint)
	if !o.compositing {
		o.state = StateRedrawScheduled
	}
}

// PendingDamage returns a copy of the damage scheduled for the next frame.
func (o *Output) PendingDamage() Region { return o.pending.Clone() }

// FrameDamage returns a copy of the damage of the frame being painted.
func (o *Output) FrameDamage() Region { return o.frame.Clone() }

// LastDamage returns a copy of the damage presented by the last frame.
func (o *Output) LastDamage() Region { return o.lastDamage.Clone() }

// --- Hooks ---

// AddEffect registers h to run in phase. It reports false if h is already
// registered for that phase.
func (o *Output) AddEffect(h *EffectHook, phase Phase) bool {
	return o.effects[phase].add(h)
}

// RemEffect unregisters h from phase.
func (o *Output) RemEffect(h *EffectHook, phase Phase) {
	o.effects[phase].remove(h)
}

func (o *Output) runEffects(phase Phase) {
	for _, h := range o.effects[phase].snapshot() {
		(*h)()
	}
}

// AddPost appends h to the post-processing chain.
func (o *Output) AddPost(h *PostHook) {
	for _, e := range o.posts {
		if e.hook == h && !e.removed {
			return
		}
	}
	o.posts = append(o.posts, &postEntry{hook: h})
	o.DamageWhole()
}

// RemPost marks h for removal. It is dropped at the next safe point of a
// repaint.
func (o *Output) RemPost(h *PostHook) {
	for _, e := range o.posts {
		if e.hook == h {
			e.removed = true
		}
	}
	o.DamageWhole()
}

// PostHooks returns the number of registered post hooks.
func (o *Output) PostHooks() int {
	n := 0
	for _, e := range o.posts {
		if !e.removed {
			n++
		}
	}
	return n
}

// cleanupPosts drops removed post hooks and frees their buffers. Must run
// inside a render scope.
func (o *Output) cleanupPosts() {
	kept := o.posts[:0]
	for _, e := range o.posts {
		if e.removed {
			e.target.Release()
			continue
		}
		kept = append(kept, e)
	}
	clear(o.posts[len(kept):])
	o.posts = kept
}

// SetRenderer replaces workspace compositing with h.
func (o *Output) SetRenderer(h RenderHook) {
	o.renderHook = h
}

// ResetRenderer restores workspace compositing and repaints the whole output
// on the next tick.
func (o *Output) ResetRenderer() {
	o.renderHook = nil
	o.DamageWholeIdle()
}

// TargetFramebuffer returns the frame being built. Inside OVERLAY hooks it
// holds the composited workspace and effects may draw on top of it.
func (o *Output) TargetFramebuffer() RenderTarget {
	if !o.back.Valid() {
		return RenderTarget{}
	}
	return o.back.Bind()
}

// HasRenderer reports whether a render hook is set.
func (o *Output) HasRenderer() bool { return o.renderHook != nil }

// AutoRedraw requests (true) or releases (false) continuous repainting.
// Requests are counted; the count never goes below zero.
func (o *Output) AutoRedraw(redraw bool) {
	if redraw {
		o.autoRedraw++
	} else {
		o.autoRedraw--
	}
	if o.autoRedraw > 1 {
		return
	}
	if o.autoRedraw < 0 {
		o.autoRedraw = 0
		return
	}
	o.ScheduleRedraw()
}

// AutoRedrawing reports whether continuous repainting is requested.
func (o *Output) AutoRedrawing() bool { return o.autoRedraw > 0 }

// AddInhibit adds or removes an inhibitor. While inhibited the output shows
// black. When the last inhibitor goes away the output is fully repainted and
// StartRendering fires.
func (o *Output) AddInhibit(add bool) {
	if add {
		o.inhibit++
		return
	}
	if !debugAssert(o.log, o.inhibit > 0, "AddInhibit(false) without inhibitor") {
		return
	}
	o.inhibit--
	if o.inhibit == 0 {
		o.DamageWhole()
		o.StartRendering.Emit(o)
	}
}

// Inhibited reports whether presentation is inhibited.
func (o *Output) Inhibited() bool { return o.inhibit > 0 }

// RequestFadeIn emits FadeInRequest.
func (o *Output) RequestFadeIn() {
	o.FadeInRequest.Emit(o)
}

// --- Views ---

// MapView puts v on this output and shows it.
func (o *Output) MapView(v *View) {
	if v.mapped {
		return
	}
	v.output = o
	v.mapped = true
	v.cachedDamage.UnionBox(v.geometry)
	o.workspace.Add(v)
	v.DamageWhole()
	o.ViewMapped.Emit(v)
}

// UnmapView hides v. ViewUnmapped handlers run while the surface is still
// readable. Unless a handler keeps the view, it is destroyed.
func (o *Output) UnmapView(v *View) {
	if !v.mapped || v.output != o {
		return
	}
	v.DamageWhole()
	o.ViewUnmapped.Emit(v)
	v.mapped = false
	if v.keep == 0 {
		o.destroyView(v)
	}
}

// MinimizeView minimizes or restores v.
func (o *Output) MinimizeView(v *View, minimized bool) {
	if v.minimized == minimized {
		return
	}
	v.DamageWhole()
	v.minimized = minimized
	o.ViewMinimized.Emit(MinimizeEvent{View: v, Minimized: minimized})
	v.DamageWhole()
}

// MoveToLayer restacks v into layer.
func (o *Output) MoveToLayer(v *View, layer Layer) {
	v.DamageWhole()
	v.Layer = layer
	o.workspace.Remove(v)
	o.workspace.Add(v)
	v.DamageWhole()
}

// SetWorkspace switches the shown workspace.
func (o *Output) SetWorkspace(ws image.Point) {
	if o.workspace.Current() == ws {
		return
	}
	o.workspace.SetCurrent(ws)
	o.DamageWhole()
}

func (o *Output) destroyView(v *View) {
	o.workspace.Remove(v)
	_ = o.renderer.Run(func() error {
		v.release(o.renderer)
		return nil
	})
}

// --- Repaint ---

// paint is the repaint idle callback.
func (o *Output) paint() {
	o.redrawSource = nil
	o.state = StateCompositing
	o.compositing = true
	var stats debugStats

	start := time.Now()
	o.frame.Clear()
	o.inPre = true
	o.runEffects(PhasePre)
	o.inPre = false
	stats.preTime = time.Since(start)

	o.frame.Union(o.pending)
	o.pending.Clear()

	var swap Region
	err := o.renderer.Run(func() error {
		var err error
		swap, err = o.composite(&stats)
		return err
	})
	o.compositing = false
	if err != nil {
		o.pending.Union(o.frame)
		o.frame.Clear()
		o.stats.DroppedFrames++
		o.log.Warn("dropped frame", "error", err)
		o.state = StateDamagePending
		o.ScheduleRedraw()
		return
	}

	o.lastDamage = swap
	o.stats.Frames++
	o.stats.LastDamage = swap.Area()
	o.state = StatePresented
	o.Presented.Emit(swap.Clone())

	o.postPaint()
	o.debugLog(stats)

	switch {
	case o.redrawSource != nil:
		o.state = StateRedrawScheduled
	case !o.pending.IsEmpty():
		o.state = StateDamagePending
	default:
		o.state = StateIdle
	}
}

// composite runs inside the render scope and returns the swap damage.
func (o *Output) composite(stats *debugStats) (Region, error) {
	full := o.Box()
	if _, err := o.back.Allocate(o.renderer, o.width, o.height); err != nil {
		return Region{}, err
	}
	o.back.Geometry = full
	o.back.Scale = 1

	var swap Region
	t := time.Now()
	if o.renderHook != nil {
		o.renderHook(o.back.Bind())
		swap = NewRegion(full)
	} else {
		o.frame.IntersectBox(full)
		if !o.frame.IsEmpty() {
			swap = o.frame.Clone()
			target := o.Stream(o.workspace.Current())
			if o.current != target {
				if o.current != nil {
					o.StreamStop(o.current)
				}
				o.current = target
				if err := o.StreamStart(target); err != nil {
					return Region{}, err
				}
			} else if err := o.StreamUpdate(target, 1, 1); err != nil {
				return Region{}, err
			}
		}
	}
	stats.compositeTime = time.Since(t)
	stats.damageRects = o.frame.Len()
	stats.damageArea = o.frame.Area()

	t = time.Now()
	o.runEffects(PhaseOverlay)
	stats.overlayTime = time.Since(t)

	t = time.Now()
	o.cleanupPosts()
	if len(o.posts) == 0 {
		o.front.Release()
	}
	presented := o.back.Texture()
	if len(o.posts) > 0 {
		swap = NewRegion(full)
		src := o.back.Bind()
		for i, e := range o.posts {
			fb := &e.target
			if i == len(o.posts)-1 {
				// The last hook draws into front; a target left from when
				// it was not last is dropped.
				e.target.Release()
				fb = &o.front
			}
			if _, err := fb.Allocate(o.renderer, o.width, o.height); err != nil {
				return Region{}, err
			}
			fb.Geometry = full
			fb.Scale = 1
			fb.Clear(ColorTransparent)
			dst := fb.Bind()
			(*e.hook)(src, dst)
			src = dst
		}
		presented = o.front.Texture()
		stats.postHooks = len(o.posts)
		o.cleanupPosts()
	}
	stats.postChainTime = time.Since(t)

	o.presented = presented
	return swap, nil
}

func (o *Output) postPaint() {
	o.runEffects(PhasePost)
	if o.autoRedraw > 0 {
		o.ScheduleRedraw()
	}

	now := time.Now()
	if o.renderHook == nil {
		for _, v := range o.workspace.ViewsOn(o.workspace.Current()) {
			v.frameDone(now)
		}
		return
	}
	// A render hook may show any workspace.
	seen := make(map[*View]bool)
	grid := o.workspace.GridSize()
	for y := 0; y < grid.Y; y++ {
		for x := 0; x < grid.X; x++ {
			for _, v := range o.workspace.ViewsOn(image.Pt(x, y)) {
				if !seen[v] {
					seen[v] = true
					v.frameDone(now)
				}
			}
		}
	}
}

// Present draws the last presented frame onto screen, or black while
// inhibited, and writes queued screenshots.
func (o *Output) Present(screen *ebiten.Image) {
	if o.inhibit > 0 || o.presented == nil {
		fillImage(screen, ColorBlack)
	} else {
		screen.DrawImage(o.presented, nil)
	}
	o.flushScreenshots(screen)
}
