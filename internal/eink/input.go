package eink

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

const (
	EVSyn = 0
	EVKey = 1
	EVAbs = 3

	SynReport  = 0
	SynDropped = 3

	ABSX            = 0x00
	ABSY            = 0x01
	ABSPressure     = 0x18
	ABSMTPositionX  = 0x35
	ABSMTPositionY  = 0x36
	ABSMTTrackingID = 0x39

	BTNToolFinger = 325
	BTNTouch      = 330

	KEYPower = 116
)

type InputEvent struct {
	Sec   int32
	Usec  int32
	Type  uint16
	Code  uint16
	Value int32
}

type TouchEvent struct {
	Kind toucharea.Kind
	X    int
	Y    int
	Down bool
	At   time.Time
}

func (e TouchEvent) Pointer() toucharea.Event {
	return toucharea.Event{Kind: e.Kind, X: e.X, Y: e.Y, Time: e.At}
}

type PowerEvent struct {
	Pressed bool
	At      time.Time
}

// Transform maps raw panel coordinates to screen coordinates. Kobo panels
// are commonly mounted rotated, so the axes may need swapping and mirroring.
// Width and Height are the screen size used for mirroring.
type Transform struct {
	SwapXY  bool
	MirrorX bool
	MirrorY bool
	Width   int
	Height  int
}

func (t Transform) Apply(x, y int) (int, int) {
	if t.SwapXY {
		x, y = y, x
	}
	if t.MirrorX && t.Width > 0 {
		x = t.Width - 1 - x
	}
	if t.MirrorY && t.Height > 0 {
		y = t.Height - 1 - y
	}
	return x, y
}

// RotationTransform maps panel coordinates onto a screen the kernel rotates
// by rotate quarter turns clockwise.
func RotationTransform(rotate, width, height int) Transform {
	t := Transform{Width: width, Height: height}
	switch rotate % 4 {
	case 1:
		t.SwapXY, t.MirrorX = true, true
	case 2:
		t.MirrorX, t.MirrorY = true, true
	case 3:
		t.SwapXY, t.MirrorY = true, true
	}
	return t
}

type InputDevice struct {
	file      *os.File
	transform Transform
}

func OpenInputDevice(path string, transform Transform) (*InputDevice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &InputDevice{file: file, transform: transform}, nil
}

func (d *InputDevice) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ReadEvents decodes the device until it fails or ctx is done. The channels
// close when the reader stops.
func (d *InputDevice) ReadEvents(ctx context.Context) (<-chan TouchEvent, <-chan PowerEvent, <-chan error) {
	return readEvents(ctx, d.file, d.transform)
}

func readEvents(ctx context.Context, r io.Reader, transform Transform) (<-chan TouchEvent, <-chan PowerEvent, <-chan error) {
	touchCh := make(chan TouchEvent, 16)
	powerCh := make(chan PowerEvent, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(touchCh)
		defer close(powerCh)
		defer close(errCh)

		decoder := newTouchDecoder(transform)
		for {
			event, err := readInputEvent(r)
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					errCh <- err
				}
				return
			}
			if event.Type == EVKey && event.Code == KEYPower {
				select {
				case powerCh <- PowerEvent{Pressed: event.Value != 0, At: eventTime(event)}:
				case <-ctx.Done():
					return
				}
				continue
			}
			if touch, ok := decoder.feed(event); ok {
				select {
				case touchCh <- touch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return touchCh, powerCh, errCh
}

// touchDecoder folds evdev reports into pointer phases. A report that starts
// contact is a press, one that keeps contact and moves is a move, and one
// that ends contact is a release. A dropped report while in contact cancels
// the gesture since the stream state is no longer known.
type touchDecoder struct {
	transform Transform
	x         int
	y         int
	touching  bool
	wasTouch  bool
	lastX     int
	lastY     int
	dirty     bool
	dropped   bool
}

func newTouchDecoder(transform Transform) *touchDecoder {
	return &touchDecoder{transform: transform}
}

func (t *touchDecoder) feed(event InputEvent) (TouchEvent, bool) {
	switch event.Type {
	case EVAbs:
		switch event.Code {
		case ABSX, ABSMTPositionX:
			t.x = int(event.Value)
			t.dirty = true
		case ABSY, ABSMTPositionY:
			t.y = int(event.Value)
			t.dirty = true
		case ABSMTTrackingID:
			t.touching = event.Value >= 0
			t.dirty = true
		case ABSPressure:
			t.touching = event.Value > 0
			t.dirty = true
		}
	case EVKey:
		switch event.Code {
		case BTNTouch, BTNToolFinger:
			t.touching = event.Value != 0
			t.dirty = true
		}
	case EVSyn:
		switch event.Code {
		case SynDropped:
			t.dropped = true
			return TouchEvent{}, false
		case SynReport:
			return t.report(eventTime(event))
		}
	}
	return TouchEvent{}, false
}

func (t *touchDecoder) report(at time.Time) (TouchEvent, bool) {
	if t.dropped {
		t.dropped = false
		t.dirty = false
		if t.wasTouch {
			t.wasTouch = false
			t.touching = false
			return TouchEvent{Kind: toucharea.Cancel, X: t.lastX, Y: t.lastY, At: at}, true
		}
		return TouchEvent{}, false
	}
	if !t.dirty {
		return TouchEvent{}, false
	}
	t.dirty = false
	x, y := t.transform.Apply(t.x, t.y)
	ev := TouchEvent{X: x, Y: y, Down: t.touching, At: at}
	switch {
	case t.touching && !t.wasTouch:
		ev.Kind = toucharea.Press
	case t.touching && t.wasTouch:
		if x == t.lastX && y == t.lastY {
			return TouchEvent{}, false
		}
		ev.Kind = toucharea.Move
	case !t.touching && t.wasTouch:
		ev.Kind = toucharea.Release
	default:
		return TouchEvent{}, false
	}
	t.wasTouch = t.touching
	t.lastX, t.lastY = x, y
	return ev, true
}

func readInputEvent(r io.Reader) (InputEvent, error) {
	var ev InputEvent
	if err := binary.Read(r, binary.LittleEndian, &ev); err != nil {
		return InputEvent{}, err
	}
	return ev, nil
}

func eventTime(ev InputEvent) time.Time {
	return time.Unix(int64(ev.Sec), int64(ev.Usec)*1000)
}
