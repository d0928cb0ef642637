package canvas

import (
	"image"

	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

// Node is a laid-out component. Geometry is local to the parent node; Rect
// holds the absolute canvas rectangle used for drawing.
type Node struct {
	ID        string
	Type      string
	Action    *A2UIAction
	Inset     *A2UIInset
	Container string
	Rect      image.Rectangle

	left     int
	top      int
	width    int
	height   int
	parent   *Node
	children []*Node
	detached bool
	pressed  bool
}

var _ toucharea.View = (*Node)(nil)
var _ toucharea.Attacher = (*Node)(nil)

func newRootNode(width, height int) *Node {
	return &Node{
		ID:     rootNodeID,
		Type:   "root",
		width:  width,
		height: height,
		Rect:   image.Rect(0, 0, width, height),
	}
}

const rootNodeID = "$root"

func (n *Node) Width() int  { return n.width }
func (n *Node) Height() int { return n.height }
func (n *Node) Left() int   { return n.left }
func (n *Node) Top() int    { return n.top }

func (n *Node) Parent() toucharea.View {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Attached() bool {
	return n != nil && !n.detached
}

func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) appendChild(child *Node) {
	child.parent = n
	n.children = append(n.children, child)
}

// ancestor returns the closest ancestor with the given id.
func (n *Node) ancestor(id string) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (n *Node) find(id string) *Node {
	if n.ID == id {
		return n
	}
	for _, child := range n.children {
		if found := child.find(id); found != nil {
			return found
		}
	}
	return nil
}

func (n *Node) detach() {
	n.detached = true
	n.pressed = false
	for _, child := range n.children {
		child.detach()
	}
}
