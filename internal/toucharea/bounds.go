package toucharea

import "errors"

var ErrNotAvailable = errors.New("toucharea: bounds not available")
var ErrUnreachableAncestor = errors.New("toucharea: container is not an ancestor of element")

// MaxDepth bounds the parent walk so a cyclic tree cannot hang a hit-test.
const MaxDepth = 1024

// View is the geometry a host tree exposes for each node. Left and Top are
// the node's offset inside its immediate parent. Parent returns nil at the
// root.
type View interface {
	Width() int
	Height() int
	Left() int
	Top() int
	Parent() View
}

// Attacher is implemented by views whose handle can go stale, for example a
// node removed from the tree while a touch was in flight.
type Attacher interface {
	Attached() bool
}

// BoundsRelativeTo returns element's rectangle in container's coordinate
// space. Element must be container itself or a descendant at any depth.
func BoundsRelativeTo(container, element View) (Rect, error) {
	var r Rect
	if err := ResolveBounds(container, element, &r); err != nil {
		return Rect{}, err
	}
	return r, nil
}

// ResolveBounds is BoundsRelativeTo writing into r. On error r is left
// untouched.
func ResolveBounds(container, element View, r *Rect) error {
	if !available(container) || !available(element) {
		return ErrNotAvailable
	}
	left, top, err := relativeOffset(container, element)
	if err != nil {
		return err
	}
	r.Set(left, top, left+element.Width(), top+element.Height())
	return nil
}

func available(v View) bool {
	if v == nil {
		return false
	}
	if a, ok := v.(Attacher); ok && !a.Attached() {
		return false
	}
	return v.Width() > 0 && v.Height() > 0
}

func relativeOffset(container, element View) (int, int, error) {
	left, top := 0, 0
	node := element
	for depth := 0; depth < MaxDepth; depth++ {
		if node == container {
			return left, top, nil
		}
		if a, ok := node.(Attacher); ok && !a.Attached() {
			return 0, 0, ErrNotAvailable
		}
		left += node.Left()
		top += node.Top()
		node = node.Parent()
		if node == nil {
			return 0, 0, ErrUnreachableAncestor
		}
	}
	return 0, 0, ErrUnreachableAncestor
}
