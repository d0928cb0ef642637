package canvas

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

// TouchOptions configure the hit areas built for action components.
// InsetX and InsetY apply to components without their own touchInset. A
// negative Slop turns gesture tracking off.
type TouchOptions struct {
	InsetX int
	InsetY int
	Slop   int
}

type Renderer struct {
	Width      int
	Height     int
	Image      *image.Gray
	HitTargets []*HitTarget

	root    *Node
	touch   TouchOptions
	logger  zerolog.Logger
	face    font.Face
	pending TouchResult
}

func NewRenderer(width, height int) *Renderer {
	img := image.NewGray(image.Rect(0, 0, width, height))
	return &Renderer{
		Width:  width,
		Height: height,
		Image:  img,
		root:   newRootNode(width, height),
		logger: zerolog.Nop(),
		face:   basicfont.Face7x13,
	}
}

func (r *Renderer) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// SetTouchOptions takes effect on the next Render.
func (r *Renderer) SetTouchOptions(opts TouchOptions) {
	r.touch = opts
}

func (r *Renderer) TouchOptions() TouchOptions {
	return r.touch
}

func (r *Renderer) Root() *Node {
	return r.root
}

// Clear blanks the image and detaches the current tree, so dispatchers and
// nodes held from the previous scene stop matching touches.
func (r *Renderer) Clear() {
	draw.Draw(r.Image, r.Image.Bounds(), &image.Uniform{C: color.Gray{Y: 255}}, image.Point{}, draw.Src)
	if r.root != nil {
		r.root.detach()
	}
	r.root = newRootNode(r.Width, r.Height)
	r.HitTargets = nil
}

func (r *Renderer) Render(components []A2UIComponent) {
	r.Clear()
	for _, comp := range components {
		r.renderComponent(comp, r.root)
	}
	r.buildHitTargets()
}

func (r *Renderer) renderComponent(comp A2UIComponent, parent *Node) {
	width := comp.Width
	height := comp.Height
	if width <= 0 {
		width = parent.width - comp.X
	}
	if height <= 0 {
		height = parent.height - comp.Y
	}
	node := &Node{
		ID:        comp.ID,
		Type:      comp.Type,
		Action:    comp.Action,
		Inset:     comp.TouchInset,
		Container: comp.TouchContainer,
		left:      comp.X,
		top:       comp.Y,
		width:     width,
		height:    height,
	}
	x := parent.Rect.Min.X + comp.X
	y := parent.Rect.Min.Y + comp.Y
	node.Rect = image.Rect(x, y, x+width, y+height)
	parent.appendChild(node)

	switch comp.Type {
	case "box", "card", "button":
		fill := uint8(230)
		if comp.Style != nil && comp.Style.FillGray != nil {
			fill = *comp.Style.FillGray
		}
		draw.Draw(r.Image, node.Rect, &image.Uniform{C: color.Gray{Y: fill}}, image.Point{}, draw.Src)
		stroke := uint8(80)
		if comp.Style != nil && comp.Style.StrokeGray != nil {
			stroke = *comp.Style.StrokeGray
		}
		r.strokeRect(node.Rect, stroke)
	case "text":
		r.drawText(comp.Text, node.Rect, color.Gray{Y: 20}, comp.Align)
	}

	if len(comp.Children) == 0 {
		return
	}
	if comp.Type == "list" {
		cursorY := comp.Padding
		for _, child := range comp.Children {
			if child.Y == 0 {
				child.Y = cursorY
			}
			child.X += comp.Padding
			r.renderComponent(child, node)
			cursorY += child.Height + comp.Padding
		}
		return
	}
	for _, child := range comp.Children {
		r.renderComponent(child, node)
	}
}

func (r *Renderer) strokeRect(rect image.Rectangle, gray uint8) {
	rect = rect.Intersect(r.Image.Bounds())
	if rect.Empty() {
		return
	}
	strokeColor := color.Gray{Y: gray}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		r.Image.SetGray(x, rect.Min.Y, strokeColor)
		r.Image.SetGray(x, rect.Max.Y-1, strokeColor)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		r.Image.SetGray(rect.Min.X, y, strokeColor)
		r.Image.SetGray(rect.Max.X-1, y, strokeColor)
	}
}

func (r *Renderer) drawText(text string, rect image.Rectangle, col color.Gray, align string) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  r.Image,
		Src:  image.NewUniform(col),
		Face: r.face,
	}
	textWidth := d.MeasureString(text).Ceil()
	startX := rect.Min.X + 2
	if align == "center" {
		startX = rect.Min.X + (rect.Dx()-textWidth)/2
	} else if align == "right" {
		startX = rect.Max.X - textWidth - 2
	}
	startY := rect.Min.Y + r.face.Metrics().Ascent.Ceil() + 2
	d.Dot = fixed.P(startX, startY)
	d.DrawString(text)
}

// Invert flips the pixels in rect. Applying it twice restores the image.
func (r *Renderer) Invert(rect image.Rectangle) image.Rectangle {
	rect = rect.Intersect(r.Image.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := r.Image.Pix[r.Image.PixOffset(rect.Min.X, y):r.Image.PixOffset(rect.Max.X, y)]
		for i := range row {
			row[i] = 255 - row[i]
		}
	}
	return rect
}

// HitTest reports the action of the topmost target whose effective hit area
// contains the canvas point, without dispatching anything. Like Dispatch it
// only considers targets whose container holds the point.
func (r *Renderer) HitTest(x, y int) *A2UIAction {
	for i := len(r.HitTargets) - 1; i >= 0; i-- {
		target := r.HitTargets[i]
		area, err := target.Area()
		if err != nil {
			continue
		}
		if area.Contains(x, y) && image.Pt(x, y).In(target.Container.Rect) {
			action := *target.Node.Action
			return &action
		}
	}
	return nil
}

func (r *Renderer) FindNode(id string) *Node {
	if id == "" {
		return nil
	}
	return r.root.find(id)
}

// Bounds returns the node's rectangle relative to the container id, or to the
// canvas when container is empty.
func (r *Renderer) Bounds(id, container string) (toucharea.Rect, error) {
	node := r.FindNode(id)
	if node == nil {
		return toucharea.Rect{}, ErrUnknownNode
	}
	parent := r.root
	if container != "" {
		if parent = r.FindNode(container); parent == nil {
			return toucharea.Rect{}, ErrUnknownNode
		}
	}
	return toucharea.BoundsRelativeTo(parent, node)
}
