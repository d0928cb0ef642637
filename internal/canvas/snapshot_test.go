package canvas

import (
	"image"
	"testing"
)

func TestSnapshotBase64(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	out, err := SnapshotBase64(img)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if out == "" {
		t.Fatalf("expected base64 output")
	}
}

func TestRendererSnapshotTouchAreas(t *testing.T) {
	r := NewRenderer(200, 200)
	r.Render(iconScene())
	plain, err := r.Snapshot(false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	outlined, err := r.Snapshot(true)
	if err != nil {
		t.Fatalf("snapshot with touch areas: %v", err)
	}
	if plain == outlined {
		t.Fatalf("expected touch area outline to change the snapshot")
	}
}
