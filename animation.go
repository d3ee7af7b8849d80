package gloam

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Duration is a time-based animation progression. Progress maps the elapsed
// fraction of Length through an easing curve; in reverse direction it returns
// 1 minus the eased value. A Duration that was never started reports the
// finished state.
//
// Durations read the wall clock only when queried, so plugins call Progress
// from their render hooks and need no per-frame Update.
type Duration struct {
	length   time.Duration
	easing   ease.TweenFunc
	tween    *gween.Tween
	now      func() time.Time
	start    time.Time
	started  bool
	reversed bool
}

// DurationOption configures a Duration.
type DurationOption func(*Duration)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) DurationOption {
	return func(d *Duration) { d.now = now }
}

// NewDuration creates a stopped progression. A nil easing means linear.
func NewDuration(length time.Duration, easing ease.TweenFunc, opts ...DurationOption) *Duration {
	if easing == nil {
		easing = ease.Linear
	}
	d := &Duration{
		length: length,
		easing: easing,
		tween:  gween.New(0, 1, 1, easing),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDurationFrom creates a Duration from a parsed animation description.
func NewDurationFrom(desc AnimationDescription, opts ...DurationOption) *Duration {
	return NewDuration(desc.Length, desc.Easing, opts...)
}

// Length returns the configured duration.
func (d *Duration) Length() time.Duration { return d.length }

// Start restarts the progression from the beginning in its current direction.
func (d *Duration) Start() {
	d.start = d.now()
	d.started = true
}

// fraction returns elapsed/length clamped to [0, 1].
func (d *Duration) fraction() float64 {
	if !d.started || d.length <= 0 {
		return 1
	}
	f := float64(d.now().Sub(d.start)) / float64(d.length)
	return math.Max(0, math.Min(1, f))
}

func (d *Duration) eased(f float64) float64 {
	v, _ := d.tween.Set(float32(f))
	return float64(v)
}

// Progress returns the eased progress in [0, 1] for well-behaved curves.
func (d *Duration) Progress() float64 {
	p := d.eased(d.fraction())
	if d.reversed {
		return 1 - p
	}
	return p
}

// Running reports whether the progression has started and not yet elapsed.
func (d *Duration) Running() bool {
	return d.started && d.length > 0 && d.now().Sub(d.start) < d.length
}

// Direction returns 1 for forward and 0 for reverse.
func (d *Duration) Direction() int {
	if d.reversed {
		return 0
	}
	return 1
}

// Reverse flips the direction. While running, the start time is re-based so
// Progress is continuous across the flip: the new elapsed fraction f' solves
// ease(f') = 1 - ease(f). Curves that overshoot are matched against the
// eased value clamped to [0, 1], so they jump by at most the overshoot.
func (d *Duration) Reverse() {
	if d.Running() {
		f := d.fraction()
		nf := d.invert(1 - math.Max(0, math.Min(1, d.eased(f))))
		if math.IsNaN(nf) {
			nf = 1 - f
		}
		d.start = d.now().Add(-time.Duration(nf * float64(d.length)))
	}
	d.reversed = !d.reversed
}

// invertSteps is the number of segments invert scans for a crossing.
const invertSteps = 64

// invert finds the smallest f in [0, 1] with ease(f) = target. It scans for
// the first segment that crosses target, so curves that are not monotone
// (back, elastic, bounce) still resolve, then bisects inside it. It returns
// NaN when no segment reaches the target.
func (d *Duration) invert(target float64) float64 {
	lo := 0.0
	prev := d.eased(0) - target
	if prev == 0 {
		return 0
	}
	for i := 1; i <= invertSteps; i++ {
		hi := float64(i) / invertSteps
		cur := d.eased(hi) - target
		if prev*cur <= 0 {
			return d.bisect(lo, hi, target, prev < 0)
		}
		lo, prev = hi, cur
	}
	return math.NaN()
}

// bisect narrows [lo, hi] around the crossing of target. rising tells
// whether the curve is below target at lo.
func (d *Duration) bisect(lo, hi, target float64, rising bool) float64 {
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		if (d.eased(mid) < target) == rising {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// --- Transition ---

// Transition interpolates between Start and End following a shared
// Duration. Several transitions may share one Duration.
type Transition struct {
	Start, End float64
	d          *Duration
}

// NewTransition creates a transition driven by d.
func NewTransition(d *Duration, start, end float64) *Transition {
	return &Transition{Start: start, End: end, d: d}
}

// Value returns the current interpolated value.
func (t *Transition) Value() float64 {
	return t.Start + (t.End-t.Start)*t.d.Progress()
}

// Set replaces both endpoints.
func (t *Transition) Set(start, end float64) {
	t.Start, t.End = start, end
}

// RestartWithEnd continues from the current value toward a new end.
func (t *Transition) RestartWithEnd(end float64) {
	t.Start = t.Value()
	t.End = end
}

// RestartSameEnd continues from the current value toward the same end.
func (t *Transition) RestartSameEnd() {
	t.Start = t.Value()
}

// Flip swaps the endpoints.
func (t *Transition) Flip() {
	t.Start, t.End = t.End, t.Start
}

// --- Easing curves ---

var sigmoidMax = 1 + math32.Exp(-6)

// Sigmoid is a logistic easing curve normalized to end at exactly 1.
func Sigmoid(t, b, c, d float32) float32 {
	x := t / d
	return b + c*sigmoidMax/(1+math32.Exp(-12*x+6))
}

var easings = map[string]ease.TweenFunc{
	"linear":        ease.Linear,
	"circle":        ease.OutCirc,
	"sigmoid":       Sigmoid,
	"in-quad":       ease.InQuad,
	"out-quad":      ease.OutQuad,
	"in-out-quad":   ease.InOutQuad,
	"in-cubic":      ease.InCubic,
	"out-cubic":     ease.OutCubic,
	"in-out-cubic":  ease.InOutCubic,
	"in-sine":       ease.InSine,
	"out-sine":      ease.OutSine,
	"in-out-sine":   ease.InOutSine,
	"in-expo":       ease.InExpo,
	"out-expo":      ease.OutExpo,
	"in-out-expo":   ease.InOutExpo,
	"in-circ":       ease.InCirc,
	"out-circ":      ease.OutCirc,
	"in-out-circ":   ease.InOutCirc,
	"in-back":       ease.InBack,
	"out-back":      ease.OutBack,
	"in-out-back":   ease.InOutBack,
	"out-bounce":    ease.OutBounce,
	"out-elastic":   ease.OutElastic,
	"in-out-bounce": ease.InOutBounce,
}

// EasingByName returns a named easing curve.
func EasingByName(name string) (ease.TweenFunc, bool) {
	fn, ok := easings[strings.ToLower(name)]
	return fn, ok
}

// AnimationDescription is a parsed "<length> [easing]" option value.
type AnimationDescription struct {
	Length     time.Duration
	Easing     ease.TweenFunc
	EasingName string
}

// DefaultEasing is used when an animation option names no curve.
const DefaultEasing = "circle"

// ParseAnimation parses values such as "300", "300ms", "1.5s linear". A bare
// number is in milliseconds.
func ParseAnimation(s string) (AnimationDescription, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return AnimationDescription{}, fmt.Errorf("parse animation %q: want \"<length> [easing]\"", s)
	}

	var length time.Duration
	if ms, err := strconv.ParseFloat(fields[0], 64); err == nil {
		length = time.Duration(ms * float64(time.Millisecond))
	} else {
		length, err = time.ParseDuration(fields[0])
		if err != nil {
			return AnimationDescription{}, fmt.Errorf("parse animation %q: %w", s, err)
		}
	}
	if length < 0 {
		return AnimationDescription{}, fmt.Errorf("parse animation %q: negative length", s)
	}

	name := DefaultEasing
	if len(fields) == 2 {
		name = strings.ToLower(fields[1])
	}
	fn, ok := EasingByName(name)
	if !ok {
		return AnimationDescription{}, fmt.Errorf("parse animation %q: unknown easing %q", s, name)
	}
	return AnimationDescription{Length: length, Easing: fn, EasingName: name}, nil
}
