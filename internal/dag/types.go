package dag

import "sync"

// Graph has one node per scheduled descriptor type and an edge from every
// dependency type to each type that depends on it. It is safe for concurrent
// use; build tasks add nodes and edges while other types are still building.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
}

// node is a descriptor type. Callers address nodes by type name only.
type node struct {
	id         string
	deps       map[string]*node // types this one links against
	dependents map[string]*node // types linking against this one
}
