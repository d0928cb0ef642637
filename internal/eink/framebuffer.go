package eink

import (
	"errors"
	"fmt"
	"image"
	"os"
	"syscall"
	"unsafe"
)

// Linux _IOC direction bits.
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

// FBIOGET_* predate _IOC encoding and carry no direction or size.
const (
	fbioGetVScreenInfo = 0x4600
	fbioGetFScreenInfo = 0x4602
)

// fbFixScreeninfo mirrors struct fb_fix_screeninfo on 32-bit ARM. Only the
// fields the node reads are named.
type fbFixScreeninfo struct {
	ID         [16]byte
	_          uint32
	SMemLen    uint32
	_          [3]uint32
	_          [3]uint16
	LineLength uint32
	_          [3]uint32
	_          [3]uint16
}

// fbVarScreeninfo mirrors struct fb_var_screeninfo. The skipped words are
// the virtual geometry, the color bitfields and the video timings.
type fbVarScreeninfo struct {
	XRes         uint32
	YRes         uint32
	_            [4]uint32
	BitsPerPixel uint32
	Grayscale    uint32
	_            [26]uint32
	Rotate       uint32
	_            [5]uint32
}

var ErrNotInitialized = errors.New("eink: framebuffer not initialized")

// Framebuffer is an 8-bit grayscale mxcfb panel mapped into memory. Rotate
// is the kernel's FB_ROTATE value, in quarter turns clockwise.
type Framebuffer struct {
	file   *os.File
	data   []byte
	Width  int
	Height int
	Stride int
	BPP    int
	Rotate int
}

func Open(path string) (fb *Framebuffer, err error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = file.Close()
		}
	}()

	var vinfo fbVarScreeninfo
	var finfo fbFixScreeninfo
	if err := ioctl(file.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&vinfo)); err != nil {
		return nil, fmt.Errorf("eink: read var screeninfo: %w", err)
	}
	if err := ioctl(file.Fd(), fbioGetFScreenInfo, unsafe.Pointer(&finfo)); err != nil {
		return nil, fmt.Errorf("eink: read fix screeninfo: %w", err)
	}
	if vinfo.BitsPerPixel != 8 {
		return nil, fmt.Errorf("eink: unsupported bpp %d", vinfo.BitsPerPixel)
	}
	stride, size := int(finfo.LineLength), int(finfo.SMemLen)
	if stride < int(vinfo.XRes) || size < stride*int(vinfo.YRes) {
		return nil, fmt.Errorf("eink: framebuffer memory %d too small for %dx%d stride %d", size, vinfo.XRes, vinfo.YRes, stride)
	}
	data, err := syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("eink: mmap: %w", err)
	}
	return &Framebuffer{
		file:   file,
		data:   data,
		Width:  int(vinfo.XRes),
		Height: int(vinfo.YRes),
		Stride: stride,
		BPP:    8,
		Rotate: int(vinfo.Rotate % 4),
	}, nil
}

// NewFramebufferFromBuffer returns an in-memory panel with no device behind
// it; Refresh is a no-op.
func NewFramebufferFromBuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		data:   make([]byte, width*height),
		Width:  width,
		Height: height,
		Stride: width,
		BPP:    8,
	}
}

func (fb *Framebuffer) Close() error {
	if fb == nil {
		return nil
	}
	if fb.file != nil && fb.data != nil {
		_ = syscall.Munmap(fb.data)
	}
	fb.data = nil
	if fb.file == nil {
		return nil
	}
	return fb.file.Close()
}

// WriteGray copies a full-screen image.
func (fb *Framebuffer) WriteGray(img *image.Gray) error {
	if fb == nil || fb.data == nil {
		return ErrNotInitialized
	}
	if size := img.Bounds().Size(); size.X != fb.Width || size.Y != fb.Height {
		return fmt.Errorf("eink: image size %dx%d does not match framebuffer %dx%d", size.X, size.Y, fb.Width, fb.Height)
	}
	return fb.WriteGrayRegion(img, image.Rect(0, 0, fb.Width, fb.Height))
}

// WriteGrayRegion copies only the rows and columns of region, clipped to the
// screen. Touch feedback uses it to avoid rewriting the whole panel.
func (fb *Framebuffer) WriteGrayRegion(img *image.Gray, region image.Rectangle) error {
	if fb == nil || fb.data == nil {
		return ErrNotInitialized
	}
	region = region.Intersect(img.Bounds()).Intersect(image.Rect(0, 0, fb.Width, fb.Height))
	for y := region.Min.Y; y < region.Max.Y; y++ {
		row := y * fb.Stride
		copy(fb.data[row+region.Min.X:row+region.Max.X], img.Pix[img.PixOffset(region.Min.X, y):img.PixOffset(region.Max.X, y)])
	}
	return nil
}

func ioctl(fd, req uintptr, arg unsafe.Pointer) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}
