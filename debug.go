package gloam

import (
	"fmt"
	"log/slog"
	"time"
)

// globalDebug enables usage assertions and per-frame stats. Transformer
// chains and framebuffers lack an Output pointer, so the flag is package-wide.
var globalDebug bool

// SetDebugMode enables or disables debug mode. In debug mode usage errors
// (duplicate transformer names, removal while rendering, framebuffer use
// outside a render scope) panic instead of being logged and ignored.
func SetDebugMode(enabled bool) {
	globalDebug = enabled
}

// DebugMode reports whether debug mode is on.
func DebugMode() bool {
	return globalDebug
}

// debugAssert checks a usage precondition. When it fails it panics in debug
// mode and otherwise logs a warning; the caller must then skip the operation.
func debugAssert(log *slog.Logger, ok bool, format string, args ...any) bool {
	if ok {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if globalDebug {
		panic("gloam debug: " + msg)
	}
	if log == nil {
		log = slog.Default()
	}
	log.Warn("ignored invalid operation", "reason", msg)
	return false
}

// debugStats holds per-frame timing and damage metrics.
// Only logged when debug mode is on.
type debugStats struct {
	preTime       time.Duration
	compositeTime time.Duration
	overlayTime   time.Duration
	postChainTime time.Duration
	damageRects   int
	damageArea    int
	postHooks     int
}

// FrameStats summarizes an Output's lifetime counters.
type FrameStats struct {
	Frames        uint64 // frames presented
	DroppedFrames uint64 // frames skipped because a buffer could not be allocated
	LastDamage    int    // pixels in the last presented damage
}

// debugLog prints per-frame stats at debug level.
func (o *Output) debugLog(stats debugStats) {
	if !globalDebug {
		return
	}
	total := stats.preTime + stats.compositeTime + stats.overlayTime + stats.postChainTime
	o.log.Debug("frame",
		"frame", o.stats.Frames,
		"pre", stats.preTime,
		"composite", stats.compositeTime,
		"overlay", stats.overlayTime,
		"post_chain", stats.postChainTime,
		"total", total,
		"damage_rects", stats.damageRects,
		"damage_area", stats.damageArea,
		"post_hooks", stats.postHooks,
	)
}
