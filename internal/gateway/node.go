package gateway

// Caps advertised by every node: it draws a canvas and reports touches.
var nodeCaps = []string{"canvas", "touch"}

// NewRegistration builds the node.register payload for the given command
// set.
func NewRegistration(commands []string) NodeRegistration {
	return NodeRegistration{
		Role:     "node",
		Caps:     append([]string(nil), nodeCaps...),
		Commands: append([]string(nil), commands...),
	}
}
