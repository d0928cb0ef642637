package canvas

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
)

func SnapshotBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Snapshot encodes the current canvas. With touchAreas set the effective
// hit areas are outlined on a copy, which is how misaligned insets are
// debugged from the gateway.
func (r *Renderer) Snapshot(touchAreas bool) (string, error) {
	if touchAreas {
		return SnapshotBase64(r.TouchAreaOverlay())
	}
	return SnapshotBase64(r.Image)
}

// TouchAreaOverlay returns a copy of the current image with the effective
// hit area of every action outlined.
func (r *Renderer) TouchAreaOverlay() *image.Gray {
	out := image.NewGray(r.Image.Bounds())
	copy(out.Pix, r.Image.Pix)
	overlay := &Renderer{Image: out}
	for _, target := range r.HitTargets {
		area, err := target.Area()
		if err != nil {
			continue
		}
		overlay.strokeRect(area.Image(), 0)
	}
	return overlay.Image
}
