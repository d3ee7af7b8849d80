// Package gloam is the render core of a compositor, built on [Ebitengine].
//
// gloam tracks damage per output and schedules exactly one repaint per tick.
// It composites views through per-view transformer chains and runs effect
// hooks at fixed points of every frame. Animations are driven by eased
// durations (via [gween]).
//
// # Quick start
//
// The simplest way to get started is [Run], which creates a window, one
// output and the configured plugins:
//
//	cfg, _ := gloam.LoadConfig("~/.config/gloam/gloam.toml")
//	gloam.Run(gloam.RunConfig{
//		Title: "gloam", Width: 1280, Height: 720, Config: cfg,
//	})
//
// For full control, create an [Output] yourself and drive its [EventLoop]
// from your own [ebiten.Game]:
//
//	func (g *Game) Update() error        { g.out.Loop().Dispatch(); return nil }
//	func (g *Game) Draw(s *ebiten.Image) { g.out.Present(s) }
//
// # Damage and repaint
//
// Anything that changes pixels reports it with [Output.Damage],
// [Output.DamageRegion] or [View.Damage]. Damage is clipped to the output
// and merged into a [Region]; the first damage after a frame queues a single
// idle repaint on the event loop. A repaint runs in this order:
//
//  1. PRE effect hooks, which may add damage to the frame being built
//  2. compositing of the current workspace, or the custom [RenderHook]
//  3. OVERLAY effect hooks
//  4. the post-processing chain of [PostHook]s
//  5. POST effect hooks, after the frame is presented
//
// [Output.AutoRedraw] keeps frames coming while animations run;
// [Output.AddInhibit] blanks the output.
//
// # Views and transformers
//
// A [View] wraps a client [Surface]. Transformers such as [View2D] are
// stacked on a view by z-order and rendered through intermediate
// framebuffers; each reports how it moves damage and points so that input
// and repaint stay correct.
//
//	tr := gloam.NewView2D(view)
//	tr.ScaleX, tr.ScaleY = 0.5, 0.5
//	view.AddTransformer(tr, gloam.ZOrder2D, "scale")
//
// Views kept alive with [View.Keep] keep rendering from a snapshot after the
// client unmaps them, which is how close animations work.
//
// # Plugins
//
// Plugins register a [PluginFactory] and are loaded by name from the [core]
// table of the configuration. Bundled plugins live under plugins/: animate,
// blur, zoom, showrepaint, invert and backgroundview.
//
// # Debugging
//
// [SetDebugMode] turns misuse (duplicate transformer names, removal while
// rendering, GPU work outside a render scope) into panics and logs per-frame
// stats at debug level. [Output.Screenshot] saves the next presented frame.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package gloam
