package toucharea

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type Kind uint8

const (
	Press Kind = iota
	Move
	Release
	Cancel
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Move:
		return "move"
	case Release:
		return "release"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is a pointer event. X and Y are in the coordinate space of whoever
// receives it: container-local for OnPointerEvent, element-local once
// delivered.
type Event struct {
	Kind Kind
	X    int
	Y    int
	Time time.Time
}

// Deliverer invokes the handler registered for element and reports whether
// the event was consumed.
type Deliverer interface {
	Deliver(element View, ev Event) bool
}

type DeliverFunc func(element View, ev Event) bool

func (f DeliverFunc) Deliver(element View, ev Event) bool {
	return f(element, ev)
}

type Option func(*Dispatcher)

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTouchSlop turns on gesture tracking: once a press lands in the hit
// area, the rest of the gesture goes to the element even if the pointer
// wanders out. While the pointer is more than slop pixels outside the hit
// area the delivered coordinates are moved outside the element.
func WithTouchSlop(slop int) Option {
	return func(d *Dispatcher) {
		if slop < 0 {
			slop = 0
		}
		d.slop = slop
		d.track = true
	}
}

// Dispatcher routes pointer events that land in an element's inset bounds
// to the element. It is not safe for concurrent use; callers serialize
// OnPointerEvent the same way they serialize event delivery.
type Dispatcher struct {
	container View
	element   View
	insetX    int
	insetY    int
	deliverer Deliverer
	logger    zerolog.Logger
	slop      int
	track     bool

	rect    Rect
	binding *binding
}

// NewDispatcher does not register itself anywhere; hook OnPointerEvent into
// the container's pointer handling.
func NewDispatcher(container, element View, insetX, insetY int, deliverer Deliverer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		container: container,
		element:   element,
		insetX:    insetX,
		insetY:    insetY,
		deliverer: deliverer,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Container() View {
	return d.container
}

func (d *Dispatcher) Element() View {
	return d.element
}

func (d *Dispatcher) Insets() (int, int) {
	return d.insetX, d.insetY
}

// Bounds returns the hit rectangle computed for the most recent event. ok is
// false before the first event or when the last event found no geometry.
func (d *Dispatcher) Bounds() (Rect, bool) {
	if d.binding == nil || !d.binding.valid {
		return Rect{}, false
	}
	return d.rect, true
}

// OnPointerEvent takes an event in container-local coordinates and reports
// whether the element consumed it.
func (d *Dispatcher) OnPointerEvent(ev Event) bool {
	if d.binding == nil {
		d.binding = &binding{bounds: &d.rect, element: d.element, deliverer: d.deliverer, slop: d.slop, track: d.track}
	}
	if err := ResolveBounds(d.container, d.element, &d.rect); err != nil {
		d.binding.valid = false
		d.binding.targeted = false
		if errors.Is(err, ErrUnreachableAncestor) {
			d.logger.Warn().Err(err).Str("kind", ev.Kind.String()).Msg("touch area container not in ancestor chain")
		} else {
			d.logger.Debug().Err(err).Str("kind", ev.Kind.String()).Msg("touch area skipped")
		}
		return false
	}
	origin := d.rect
	d.rect.Inset(d.insetX, d.insetY)
	d.binding.valid = true
	return d.binding.dispatch(ev, origin)
}

// binding ties the dispatcher's rect to its element. It is created on the
// first event and reused; only the rect contents change between events.
type binding struct {
	bounds    *Rect
	element   View
	deliverer Deliverer
	slop      int
	track     bool
	valid     bool
	targeted  bool
}

func (b *binding) dispatch(ev Event, origin Rect) bool {
	if b.deliverer == nil {
		return false
	}
	if !b.track {
		if !b.bounds.Contains(ev.X, ev.Y) {
			return false
		}
		return b.deliver(ev, origin, true)
	}
	if b.bounds.Degenerate() {
		b.targeted = false
		return false
	}
	switch ev.Kind {
	case Press:
		b.targeted = b.bounds.Contains(ev.X, ev.Y)
		if !b.targeted {
			return false
		}
		return b.deliver(ev, origin, true)
	case Move, Release:
		if !b.targeted {
			return false
		}
		if ev.Kind == Release {
			b.targeted = false
		}
		return b.deliver(ev, origin, b.withinSlop(ev.X, ev.Y))
	case Cancel:
		if !b.targeted {
			return false
		}
		b.targeted = false
		return b.deliver(ev, origin, true)
	}
	return false
}

func (b *binding) withinSlop(x, y int) bool {
	r := *b.bounds
	r.Inset(-b.slop, -b.slop)
	return r.Contains(x, y)
}

func (b *binding) deliver(ev Event, origin Rect, inside bool) bool {
	local := ev
	if inside {
		local.X = clamp(ev.X-origin.Left, 0, origin.Width()-1)
		local.Y = clamp(ev.Y-origin.Top, 0, origin.Height()-1)
	} else {
		local.X = -2 * (b.slop + 1)
		local.Y = -2 * (b.slop + 1)
	}
	return b.deliverer.Deliver(b.element, local)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
