package eink

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

func TestReadInputEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	ev := InputEvent{Sec: 1, Usec: 2, Type: EVAbs, Code: ABSX, Value: 123}
	if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
		t.Fatalf("binary write: %v", err)
	}
	read, err := readInputEvent(buf)
	if err != nil {
		t.Fatalf("readInputEvent: %v", err)
	}
	if read.Code != ABSX || read.Value != 123 {
		t.Fatalf("unexpected event")
	}
}

func feedAll(t *testing.T, d *touchDecoder, events ...InputEvent) []TouchEvent {
	t.Helper()
	var out []TouchEvent
	for _, ev := range events {
		if touch, ok := d.feed(ev); ok {
			out = append(out, touch)
		}
	}
	return out
}

func abs(code uint16, value int32) InputEvent {
	return InputEvent{Type: EVAbs, Code: code, Value: value}
}

func key(code uint16, value int32) InputEvent {
	return InputEvent{Type: EVKey, Code: code, Value: value}
}

func syn() InputEvent {
	return InputEvent{Type: EVSyn, Code: SynReport}
}

func TestTouchDecoderPhases(t *testing.T) {
	d := newTouchDecoder(Transform{})
	got := feedAll(t, d,
		abs(ABSX, 10), abs(ABSY, 20), key(BTNTouch, 1), syn(),
		abs(ABSX, 12), syn(),
		syn(),
		abs(ABSX, 12), syn(),
		key(BTNTouch, 0), syn(),
	)
	want := []toucharea.Kind{toucharea.Press, toucharea.Move, toucharea.Release}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i, kind := range want {
		if got[i].Kind != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, got[i].Kind)
		}
	}
	if got[0].X != 10 || got[0].Y != 20 || !got[0].Down {
		t.Fatalf("unexpected press %+v", got[0])
	}
	if got[1].X != 12 {
		t.Fatalf("unexpected move %+v", got[1])
	}
	if got[2].Down {
		t.Fatalf("expected release to be up")
	}
}

func TestTouchDecoderMultitouchTrackingID(t *testing.T) {
	d := newTouchDecoder(Transform{})
	got := feedAll(t, d,
		abs(ABSMTTrackingID, 3), abs(ABSMTPositionX, 5), abs(ABSMTPositionY, 6), syn(),
		abs(ABSMTTrackingID, -1), syn(),
	)
	if len(got) != 2 || got[0].Kind != toucharea.Press || got[1].Kind != toucharea.Release {
		t.Fatalf("unexpected events %+v", got)
	}
	if p := got[0].Pointer(); p.X != 5 || p.Y != 6 || p.Kind != toucharea.Press {
		t.Fatalf("unexpected pointer %+v", p)
	}
}

func TestTouchDecoderDroppedCancels(t *testing.T) {
	d := newTouchDecoder(Transform{})
	got := feedAll(t, d,
		abs(ABSX, 1), abs(ABSY, 1), key(BTNTouch, 1), syn(),
		InputEvent{Type: EVSyn, Code: SynDropped}, abs(ABSX, 50), syn(),
		abs(ABSX, 60), syn(),
	)
	if len(got) != 2 || got[1].Kind != toucharea.Cancel {
		t.Fatalf("expected press then cancel, got %+v", got)
	}
}

func TestTouchDecoderIgnoresHover(t *testing.T) {
	d := newTouchDecoder(Transform{})
	if got := feedAll(t, d, abs(ABSX, 1), abs(ABSY, 1), syn()); len(got) != 0 {
		t.Fatalf("expected no events without contact, got %+v", got)
	}
}

func TestTransformApply(t *testing.T) {
	tr := Transform{SwapXY: true, MirrorX: true, Width: 600, Height: 800}
	x, y := tr.Apply(100, 20)
	if x != 579 || y != 100 {
		t.Fatalf("expected (579,100), got (%d,%d)", x, y)
	}
	x, y = Transform{MirrorY: true, Height: 800}.Apply(3, 0)
	if x != 3 || y != 799 {
		t.Fatalf("expected (3,799), got (%d,%d)", x, y)
	}
}

func TestRotationTransform(t *testing.T) {
	cases := []struct {
		rotate int
		wantX  int
		wantY  int
	}{
		{rotate: 0, wantX: 10, wantY: 20},
		{rotate: 1, wantX: 579, wantY: 10},
		{rotate: 2, wantX: 589, wantY: 779},
		{rotate: 3, wantX: 20, wantY: 789},
	}
	for _, tc := range cases {
		x, y := RotationTransform(tc.rotate, 600, 800).Apply(10, 20)
		if x != tc.wantX || y != tc.wantY {
			t.Fatalf("rotate %d: expected (%d,%d), got (%d,%d)", tc.rotate, tc.wantX, tc.wantY, x, y)
		}
	}
}

func encodeEvents(t *testing.T, events ...InputEvent) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	for _, ev := range events {
		if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
			t.Fatalf("binary write: %v", err)
		}
	}
	return buf
}

func TestReadEventsDeliversTouches(t *testing.T) {
	buf := encodeEvents(t, abs(ABSX, 4), abs(ABSY, 8), key(BTNTouch, 1), syn(), key(BTNTouch, 0), syn())
	touchCh, _, errCh := readEvents(context.Background(), buf, Transform{})
	var kinds []toucharea.Kind
	for touch := range touchCh {
		kinds = append(kinds, touch.Kind)
	}
	if len(kinds) != 2 || kinds[0] != toucharea.Press || kinds[1] != toucharea.Release {
		t.Fatalf("unexpected touch kinds %v", kinds)
	}
	if err, ok := <-errCh; ok {
		t.Fatalf("expected EOF to end quietly, got %v", err)
	}
}

func TestReadEventsStopsWhenCanceled(t *testing.T) {
	var events []InputEvent
	for i := 0; i < 10; i++ {
		events = append(events, key(KEYPower, int32(i%2)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	touchCh, _, _ := readEvents(ctx, encodeEvents(t, events...), Transform{})
	cancel()
	select {
	case _, ok := <-touchCh:
		if ok {
			t.Fatalf("expected no touch events")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader blocked on a full power channel after cancel")
	}
}
