package eink

import (
	"image"
	"sync/atomic"
	"unsafe"
)

// Update describes one panel refresh. An empty Region refreshes the whole
// screen; Fast selects the A2 waveform used for touch feedback. Wait blocks
// until the controller reports the update done, so a following update to the
// same region does not collide with it.
type Update struct {
	Region   image.Rectangle
	Full     bool
	Fast     bool
	Wait     bool
	Waveform int
}

const (
	UpdateModePartial = 0
	UpdateModeFull    = 1
)

const (
	WaveformModeInit = 0
	WaveformModeDU   = 1
	WaveformModeGC16 = 2
	WaveformModeGC4  = 3
	WaveformModeA2   = 4
	WaveformModeAuto = 257
)

const (
	mxcfbSendUpdate        = 0x2E
	mxcfbWaitForUpdateDone = 0x2F
	mxcfbTempUseAmbient    = -1
)

type mxcfbRect struct {
	Top    uint32
	Left   uint32
	Width  uint32
	Height uint32
}

type mxcfbUpdateData struct {
	UpdateRegion mxcfbRect
	WaveformMode uint32
	UpdateMode   uint32
	UpdateMarker uint32
	Temp         int32
	Flags        uint32
	AltBuffer    uint32
	AltStride    uint32
}

type mxcfbUpdateMarkerData struct {
	UpdateMarker  uint32
	CollisionTest uint32
}

var updateMarkers atomic.Uint32

// planUpdate clips the update to the screen and picks the controller modes.
func planUpdate(update Update, width, height int) mxcfbUpdateData {
	screen := image.Rect(0, 0, width, height)
	region := update.Region.Intersect(screen)
	if region.Empty() {
		region = screen
	}
	mode := UpdateModePartial
	if update.Full {
		mode = UpdateModeFull
	}
	waveform := WaveformModeAuto
	switch {
	case update.Waveform != 0:
		waveform = update.Waveform
	case update.Fast:
		waveform = WaveformModeA2
	}
	return mxcfbUpdateData{
		UpdateRegion: mxcfbRect{
			Top:    uint32(region.Min.Y),
			Left:   uint32(region.Min.X),
			Width:  uint32(region.Dx()),
			Height: uint32(region.Dy()),
		},
		WaveformMode: uint32(waveform),
		UpdateMode:   uint32(mode),
		UpdateMarker: updateMarkers.Add(1),
		Temp:         mxcfbTempUseAmbient,
	}
}

func (fb *Framebuffer) Refresh(update Update) error {
	if fb == nil || fb.file == nil {
		return nil
	}
	data := planUpdate(update, fb.Width, fb.Height)
	req := ioc(iocWrite, 'F', mxcfbSendUpdate, unsafe.Sizeof(data))
	if err := ioctl(fb.file.Fd(), req, unsafe.Pointer(&data)); err != nil {
		return err
	}
	if !update.Wait {
		return nil
	}
	marker := mxcfbUpdateMarkerData{UpdateMarker: data.UpdateMarker}
	req = ioc(iocRead|iocWrite, 'F', mxcfbWaitForUpdateDone, unsafe.Sizeof(marker))
	return ioctl(fb.file.Fd(), req, unsafe.Pointer(&marker))
}
