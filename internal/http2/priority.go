package http2

import (
	"fmt"
	"sync"
)

// PrioritySpec is the priority metadata carried by a PRIORITY frame or by
// the optional priority fields of a HEADERS frame.
type PrioritySpec struct {
	// StreamDependency is the stream this stream depends on; 0 means the
	// tree root.
	StreamDependency uint32
	// Weight is the stream's weight as encoded on the wire (0-255,
	// effective 1-256).
	Weight uint8
	// Exclusive makes the stream the sole child of its new parent.
	Exclusive bool
}

// priorityNode stores individual stream priority information, as per
// RFC 7540 Section 5.3.
type priorityNode struct {
	streamID uint32

	// weight is the stream's weight as specified in a PRIORITY or HEADERS
	// frame. The effective weight used for resource allocation is this
	// value + 1 (range 1-256).
	weight uint8

	// parentID is the stream ID of the parent stream. 0 means this stream
	// depends on the tree root directly.
	parentID uint32

	childrenIDs []uint32

	exclusive bool
}

// PriorityTree records stream dependencies for a connection. Stream 0 is
// the implicit root; all streams initially depend on it. The decoder only
// records and forwards this metadata; scheduling on top of it is someone
// else's job.
//
// The tree keeps its own mutex because the surrounding system may inspect
// priority state from outside the connection's frame-processing timeline.
type PriorityTree struct {
	mu sync.RWMutex

	// nodes maps a stream ID to its priorityNode, including a node for the
	// root stream 0.
	nodes map[uint32]*priorityNode

	// streamWasClosed reports whether an id belonged to a stream that has
	// already been closed and removed. Dependencies naming such ids are a
	// recoverable condition, not a protocol fault.
	streamWasClosed func(uint32) bool
}

// NewPriorityTree creates and initializes a new PriorityTree with stream 0
// as the root. streamWasClosed may be nil, in which case no id is ever
// considered closed.
func NewPriorityTree(streamWasClosed func(uint32) bool) *PriorityTree {
	if streamWasClosed == nil {
		streamWasClosed = func(uint32) bool { return false }
	}
	root := &priorityNode{streamID: 0}
	return &PriorityTree{
		nodes:           map[uint32]*priorityNode{0: root},
		streamWasClosed: streamWasClosed,
	}
}

// UpdateDependency applies priority metadata for streamID: dependency on
// parent spec.StreamDependency with the given weight, optionally exclusive.
// Unknown parents get placeholder nodes (RFC 7540 Section 5.3.4 allows
// dependencies on idle streams). Naming a closed stream as target or parent
// yields a closedStreamCreationError that PRIORITY handling swallows.
func (pt *PriorityTree) UpdateDependency(streamID uint32, spec PrioritySpec) error {
	if streamID == 0 {
		return NewConnectionError(ErrCodeProtocolError, "PRIORITY must not target stream 0")
	}
	if streamID == spec.StreamDependency {
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("stream %d cannot depend on itself", streamID))
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.nodes[streamID] == nil && pt.streamWasClosed(streamID) {
		return &closedStreamCreationError{StreamID: streamID}
	}
	if spec.StreamDependency != 0 && pt.nodes[spec.StreamDependency] == nil && pt.streamWasClosed(spec.StreamDependency) {
		return &closedStreamCreationError{StreamID: spec.StreamDependency}
	}

	node := pt.getOrCreateNodeLocked(streamID)
	parent := pt.getOrCreateNodeLocked(spec.StreamDependency)

	// Re-parenting below a dependent moves the parent out of the subtree
	// first (RFC 7540 Section 5.3.3).
	if pt.isDescendantLocked(streamID, spec.StreamDependency) {
		grandparent := pt.nodes[node.parentID]
		pt.detachLocked(parent)
		parent.parentID = grandparent.streamID
		grandparent.childrenIDs = append(grandparent.childrenIDs, parent.streamID)
	}

	pt.detachLocked(node)
	if spec.Exclusive {
		// The stream adopts all of the parent's current children.
		for _, childID := range parent.childrenIDs {
			child := pt.nodes[childID]
			child.parentID = streamID
			node.childrenIDs = append(node.childrenIDs, childID)
		}
		parent.childrenIDs = parent.childrenIDs[:0]
	}
	node.parentID = parent.streamID
	node.weight = spec.Weight
	node.exclusive = spec.Exclusive
	parent.childrenIDs = append(parent.childrenIDs, streamID)
	return nil
}

// reserveStream adds a node for a promised stream inheriting the parent
// stream's position in the tree.
func (pt *PriorityTree) reserveStream(streamID, parentID uint32) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	node := pt.getOrCreateNodeLocked(streamID)
	parent := pt.getOrCreateNodeLocked(parentID)
	pt.detachLocked(node)
	node.parentID = parent.streamID
	parent.childrenIDs = append(parent.childrenIDs, streamID)
}

// RemoveStream removes a closed stream from the tree, reparenting its
// children onto its parent (RFC 7540 Section 5.3.4).
func (pt *PriorityTree) RemoveStream(streamID uint32) {
	if streamID == 0 {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	node := pt.nodes[streamID]
	if node == nil {
		return
	}
	parent := pt.nodes[node.parentID]
	if parent == nil {
		parent = pt.nodes[0]
	}
	pt.detachLocked(node)
	for _, childID := range node.childrenIDs {
		child := pt.nodes[childID]
		child.parentID = parent.streamID
		parent.childrenIDs = append(parent.childrenIDs, childID)
	}
	delete(pt.nodes, streamID)
}

// Dependencies returns the recorded parent and children of a stream, with
// ok false when the stream has no node in the tree.
func (pt *PriorityTree) Dependencies(streamID uint32) (parentID uint32, childrenIDs []uint32, ok bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	node := pt.nodes[streamID]
	if node == nil {
		return 0, nil, false
	}
	children := make([]uint32, len(node.childrenIDs))
	copy(children, node.childrenIDs)
	return node.parentID, children, true
}

// Weight returns the recorded weight of a stream, with ok false when the
// stream has no node in the tree.
func (pt *PriorityTree) Weight(streamID uint32) (weight uint8, ok bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	node := pt.nodes[streamID]
	if node == nil {
		return 0, false
	}
	return node.weight, true
}

func (pt *PriorityTree) getOrCreateNodeLocked(streamID uint32) *priorityNode {
	node := pt.nodes[streamID]
	if node == nil {
		node = &priorityNode{
			streamID: streamID,
			weight:   DefaultPriorityWeight,
		}
		pt.nodes[streamID] = node
		if streamID != 0 {
			root := pt.nodes[0]
			root.childrenIDs = append(root.childrenIDs, streamID)
		}
	}
	return node
}

// detachLocked unlinks node from its current parent's child list.
func (pt *PriorityTree) detachLocked(node *priorityNode) {
	parent := pt.nodes[node.parentID]
	if parent == nil {
		return
	}
	for i, id := range parent.childrenIDs {
		if id == node.streamID {
			parent.childrenIDs = append(parent.childrenIDs[:i], parent.childrenIDs[i+1:]...)
			break
		}
	}
}

// isDescendantLocked reports whether candidate is in the subtree rooted at
// ancestor.
func (pt *PriorityTree) isDescendantLocked(ancestor, candidate uint32) bool {
	if ancestor == candidate {
		return true
	}
	node := pt.nodes[candidate]
	for node != nil && node.streamID != 0 {
		if node.parentID == ancestor {
			return true
		}
		node = pt.nodes[node.parentID]
	}
	return false
}
