package toucharea

import (
	"testing"

	"github.com/rs/zerolog"
)

type recordingDeliverer struct {
	events  []Event
	targets []View
	consume bool
}

func (r *recordingDeliverer) Deliver(element View, ev Event) bool {
	r.events = append(r.events, ev)
	r.targets = append(r.targets, element)
	return r.consume
}

func TestDispatcherEndToEnd(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, -10, -10, rec, WithLogger(zerolog.Nop()))

	if !d.OnPointerEvent(Event{Kind: Press, X: 95, Y: 95}) {
		t.Fatalf("expected (95,95) consumed")
	}
	if got, ok := d.Bounds(); !ok || got != (Rect{Left: 90, Top: 90, Right: 130, Bottom: 130}) {
		t.Fatalf("unexpected hit rect %v (ok=%v)", got, ok)
	}
	if d.OnPointerEvent(Event{Kind: Press, X: 85, Y: 85}) {
		t.Fatalf("expected (85,85) not consumed")
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one delivery, got %d", len(rec.events))
	}
	if rec.targets[0] != View(element) {
		t.Fatalf("delivered to wrong view")
	}
	if rec.events[0].X != 0 || rec.events[0].Y != 0 {
		t.Fatalf("expected element-local coordinates clamped to (0,0), got (%d,%d)", rec.events[0].X, rec.events[0].Y)
	}
}

func TestDispatcherReturnsDeliveryResult(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: false}
	d := NewDispatcher(container, element, 0, 0, rec)
	if d.OnPointerEvent(Event{Kind: Press, X: 105, Y: 105}) {
		t.Fatalf("expected element refusal to propagate")
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected event delivered")
	}
	if rec.events[0].X != 5 || rec.events[0].Y != 5 {
		t.Fatalf("expected local (5,5), got (%d,%d)", rec.events[0].X, rec.events[0].Y)
	}
}

func TestDispatcherShrinkInset(t *testing.T) {
	container := &testView{width: 200, height: 200}
	element := &testView{width: 100, height: 50, parent: container}
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, 10, 5, rec)
	if !d.OnPointerEvent(Event{X: 10, Y: 5}) {
		t.Fatalf("expected (10,5) inside")
	}
	if d.OnPointerEvent(Event{X: 9, Y: 5}) {
		t.Fatalf("expected (9,5) outside")
	}
}

func TestDispatcherDegenerateNeverConsumes(t *testing.T) {
	container := &testView{width: 200, height: 200}
	element := &testView{width: 100, height: 50, parent: container}
	rec := &recordingDeliverer{consume: true}
	for _, opts := range [][]Option{nil, {WithTouchSlop(8)}} {
		d := NewDispatcher(container, element, 60, 0, rec, opts...)
		for x := 0; x <= 100; x += 10 {
			for _, kind := range []Kind{Press, Move, Release, Cancel} {
				if d.OnPointerEvent(Event{Kind: kind, X: x, Y: 25}) {
					t.Fatalf("degenerate region consumed %s at x=%d", kind, x)
				}
			}
		}
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(rec.events))
	}
}

func TestDispatcherZeroSizeNeverConsumes(t *testing.T) {
	container, _, element := scenarioTree()
	element.width = 0
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, -50, -50, rec)
	if d.OnPointerEvent(Event{Kind: Press, X: 100, Y: 100}) {
		t.Fatalf("expected zero-size element to pass through")
	}
	if _, ok := d.Bounds(); ok {
		t.Fatalf("expected no bounds")
	}
	container.height = 0
	element.width = 20
	if d.OnPointerEvent(Event{Kind: Press, X: 100, Y: 100}) {
		t.Fatalf("expected zero-size container to pass through")
	}
}

func TestDispatcherUnreachableContainerNeverConsumes(t *testing.T) {
	container, _, _ := scenarioTree()
	_, _, stranger := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, stranger, 0, 0, rec)
	if d.OnPointerEvent(Event{Kind: Press, X: 5, Y: 5}) {
		t.Fatalf("expected unreachable element to pass through")
	}
}

func TestDispatcherDetachedAfterTeardown(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, 0, 0, rec)
	if !d.OnPointerEvent(Event{Kind: Press, X: 110, Y: 110}) {
		t.Fatalf("expected consumed while attached")
	}
	element.detached = true
	if d.OnPointerEvent(Event{Kind: Press, X: 110, Y: 110}) {
		t.Fatalf("expected detached element to pass through")
	}
}

func TestDispatcherNilDeliverer(t *testing.T) {
	container, _, element := scenarioTree()
	d := NewDispatcher(container, element, 0, 0, nil)
	if d.OnPointerEvent(Event{Kind: Press, X: 110, Y: 110}) {
		t.Fatalf("expected no consumption without deliverer")
	}
}

func TestDispatcherReusesBinding(t *testing.T) {
	container, parent, element := scenarioTree()
	d := NewDispatcher(container, element, 0, 0, &recordingDeliverer{consume: true})
	if _, ok := d.Bounds(); ok {
		t.Fatalf("expected no bounds before first event")
	}
	d.OnPointerEvent(Event{X: 0, Y: 0})
	first := d.binding
	if first == nil || first.bounds != &d.rect {
		t.Fatalf("expected binding over dispatcher rect")
	}
	parent.left = 50
	if !d.OnPointerEvent(Event{X: 145, Y: 105}) {
		t.Fatalf("expected moved element to be hit at new position")
	}
	if d.binding != first {
		t.Fatalf("expected binding reuse")
	}
	if got, _ := d.Bounds(); got != (Rect{Left: 140, Top: 100, Right: 160, Bottom: 120}) {
		t.Fatalf("expected recomputed bounds, got %v", got)
	}
}

func TestDispatcherTrackingKeepsGesture(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, -10, -10, rec, WithTouchSlop(5))

	if d.OnPointerEvent(Event{Kind: Move, X: 100, Y: 100}) {
		t.Fatalf("expected move without press to be ignored")
	}
	if !d.OnPointerEvent(Event{Kind: Press, X: 92, Y: 92}) {
		t.Fatalf("expected press in expanded area consumed")
	}
	if !d.OnPointerEvent(Event{Kind: Move, X: 133, Y: 110}) {
		t.Fatalf("expected move within slop consumed")
	}
	if got := rec.events[len(rec.events)-1]; got.X != 19 || got.Y != 10 {
		t.Fatalf("expected clamped local (19,10), got (%d,%d)", got.X, got.Y)
	}
	if !d.OnPointerEvent(Event{Kind: Move, X: 170, Y: 110}) {
		t.Fatalf("expected move outside slop still delivered while tracking")
	}
	if got := rec.events[len(rec.events)-1]; got.X >= 0 || got.Y >= 0 {
		t.Fatalf("expected coordinates outside element, got (%d,%d)", got.X, got.Y)
	}
	if !d.OnPointerEvent(Event{Kind: Release, X: 170, Y: 110}) {
		t.Fatalf("expected release delivered while tracking")
	}
	if d.OnPointerEvent(Event{Kind: Move, X: 100, Y: 100}) {
		t.Fatalf("expected tracking to end after release")
	}
	if len(rec.events) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(rec.events))
	}
	if rec.events[0].Kind != Press || rec.events[3].Kind != Release {
		t.Fatalf("unexpected delivered kinds %v", rec.events)
	}
}

func TestDispatcherTrackingPressOutside(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, -10, -10, rec, WithTouchSlop(5))
	if d.OnPointerEvent(Event{Kind: Press, X: 85, Y: 85}) {
		t.Fatalf("expected press outside ignored")
	}
	if d.OnPointerEvent(Event{Kind: Release, X: 100, Y: 100}) {
		t.Fatalf("expected release without tracked press ignored")
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no deliveries")
	}
}

func TestDispatcherTrackingCancel(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, 0, 0, rec, WithTouchSlop(0))
	d.OnPointerEvent(Event{Kind: Press, X: 105, Y: 105})
	if !d.OnPointerEvent(Event{Kind: Cancel}) {
		t.Fatalf("expected cancel delivered while tracking")
	}
	if d.OnPointerEvent(Event{Kind: Cancel}) {
		t.Fatalf("expected second cancel ignored")
	}
}

func TestDispatcherTrackingResetsWhenGeometryLost(t *testing.T) {
	container, _, element := scenarioTree()
	rec := &recordingDeliverer{consume: true}
	d := NewDispatcher(container, element, 0, 0, rec, WithTouchSlop(4))
	d.OnPointerEvent(Event{Kind: Press, X: 105, Y: 105})
	element.detached = true
	if d.OnPointerEvent(Event{Kind: Move, X: 105, Y: 105}) {
		t.Fatalf("expected detached element to pass through")
	}
	element.detached = false
	if d.OnPointerEvent(Event{Kind: Release, X: 105, Y: 105}) {
		t.Fatalf("expected tracking dropped after geometry loss")
	}
}

func TestDeliverFunc(t *testing.T) {
	container, _, element := scenarioTree()
	var got Event
	d := NewDispatcher(container, element, 0, 0, DeliverFunc(func(v View, ev Event) bool {
		got = ev
		return true
	}))
	if !d.OnPointerEvent(Event{Kind: Release, X: 119, Y: 101}) {
		t.Fatalf("expected consumed")
	}
	if got.Kind != Release || got.X != 19 || got.Y != 1 {
		t.Fatalf("unexpected delivered event %+v", got)
	}
}
