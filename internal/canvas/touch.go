package canvas

import (
	"errors"

	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

var ErrUnknownNode = errors.New("canvas: unknown node")

// HitTarget is an action node together with the dispatcher that routes
// touches from its container to it.
type HitTarget struct {
	Node       *Node
	Container  *Node
	Dispatcher *toucharea.Dispatcher
}

// Area returns the effective hit area in canvas coordinates.
func (t *HitTarget) Area() (toucharea.Rect, error) {
	bounds, err := toucharea.BoundsRelativeTo(t.Container, t.Node)
	if err != nil {
		return toucharea.Rect{}, err
	}
	bounds.Inset(t.Dispatcher.Insets())
	return bounds.Offset(t.Container.Rect.Min.X, t.Container.Rect.Min.Y), nil
}

// Tap is a completed press and release on an action node.
type Tap struct {
	Node   *Node
	Action A2UIAction
	X      int
	Y      int
}

// TouchResult summarizes what one touch event did to the scene.
type TouchResult struct {
	Consumed bool
	Pressed  *Node
	Released *Node
	Tap      *Tap
}

func (r *Renderer) buildHitTargets() {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Action != nil && n.width > 0 && n.height > 0 {
			r.HitTargets = append(r.HitTargets, r.newHitTarget(n))
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(r.root)
}

func (r *Renderer) newHitTarget(n *Node) *HitTarget {
	container := r.root
	if n.Container != "" {
		if found := n.ancestor(n.Container); found != nil {
			container = found
		} else {
			r.logger.Warn().Str("id", n.ID).Str("touchContainer", n.Container).Msg("touch container is not an ancestor, using canvas")
		}
	}
	insetX, insetY := r.touch.InsetX, r.touch.InsetY
	if n.Inset != nil {
		insetX, insetY = n.Inset.X, n.Inset.Y
	}
	opts := []toucharea.Option{toucharea.WithLogger(r.logger.With().Str("id", n.ID).Logger())}
	if r.touch.Slop >= 0 {
		opts = append(opts, toucharea.WithTouchSlop(r.touch.Slop))
	}
	return &HitTarget{
		Node:       n,
		Container:  container,
		Dispatcher: toucharea.NewDispatcher(container, n, insetX, insetY, toucharea.DeliverFunc(r.deliver), opts...),
	}
}

// Dispatch routes a canvas-space event to the hit targets, topmost first,
// and stops at the first one that consumes it. A press only reaches targets
// whose container it landed in, the same way a platform only hands a gesture
// to views under the finger. The container test uses the same closed bounds
// as the hit area.
func (r *Renderer) Dispatch(ev toucharea.Event) TouchResult {
	r.pending = TouchResult{}
	for i := len(r.HitTargets) - 1; i >= 0; i-- {
		target := r.HitTargets[i]
		if ev.Kind == toucharea.Press && !containerRect(target.Container).Contains(ev.X, ev.Y) {
			continue
		}
		local := ev
		local.X -= target.Container.Rect.Min.X
		local.Y -= target.Container.Rect.Min.Y
		if target.Dispatcher.OnPointerEvent(local) {
			r.pending.Consumed = true
			if r.pending.Tap != nil {
				r.pending.Tap.X = ev.X
				r.pending.Tap.Y = ev.Y
			}
			break
		}
	}
	if ev.Kind == toucharea.Release || ev.Kind == toucharea.Cancel {
		r.disarm()
	}
	return r.pending
}

// disarm clears a press left behind when the gesture ended outside every hit
// area, which happens when dispatchers do not track gestures.
func (r *Renderer) disarm() {
	for _, target := range r.HitTargets {
		if !target.Node.pressed {
			continue
		}
		target.Node.pressed = false
		if r.pending.Released == nil {
			r.pending.Released = target.Node
		}
	}
}

func containerRect(n *Node) toucharea.Rect {
	return toucharea.Rect{Left: n.Rect.Min.X, Top: n.Rect.Min.Y, Right: n.Rect.Max.X, Bottom: n.Rect.Max.Y}
}

// deliver is the per-node click handler: a press arms the node, a release
// on the node completes a tap, and leaving the node disarms it.
func (r *Renderer) deliver(v toucharea.View, ev toucharea.Event) bool {
	n, ok := v.(*Node)
	if !ok || !n.Attached() {
		return false
	}
	inside := ev.X >= 0 && ev.Y >= 0 && ev.X < n.width && ev.Y < n.height
	switch ev.Kind {
	case toucharea.Press:
		if !n.pressed {
			n.pressed = true
			r.pending.Pressed = n
		}
	case toucharea.Move:
		if n.pressed && !inside {
			n.pressed = false
			r.pending.Released = n
		}
	case toucharea.Release:
		wasPressed := n.pressed
		n.pressed = false
		if wasPressed {
			r.pending.Released = n
			if inside && n.Action != nil {
				r.pending.Tap = &Tap{Node: n, Action: *n.Action}
			}
		}
	case toucharea.Cancel:
		if n.pressed {
			n.pressed = false
			r.pending.Released = n
		}
	}
	return true
}
