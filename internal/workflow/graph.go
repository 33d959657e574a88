package workflow

import "fmt"

// Index materializes the two derived lookups the engine and validator
// reuse for traversal, gateway selection, and validation, per Design Note
// §9 "Graph representation".
type Index struct {
	NodesByID    map[string]*Node
	EdgesBySrc   map[string][]*Edge
}

// BuildIndex indexes nodes by id and edges by source node id.
func BuildIndex(s Structure) *Index {
	idx := &Index{
		NodesByID:  make(map[string]*Node, len(s.Nodes)),
		EdgesBySrc: make(map[string][]*Edge, len(s.Edges)),
	}
	for i := range s.Nodes {
		n := &s.Nodes[i]
		idx.NodesByID[n.ID] = n
	}
	for i := range s.Edges {
		e := &s.Edges[i]
		idx.EdgesBySrc[e.Source] = append(idx.EdgesBySrc[e.Source], e)
	}
	return idx
}

// FindStart locates the unique EVENT node whose label/id is "Start".
func FindStart(s Structure, nodeTypeOf func(shapeName string) (NodeType, bool)) (*Node, error) {
	var found *Node
	for i := range s.Nodes {
		n := &s.Nodes[i]
		nt, ok := nodeTypeOf(n.Data.Type)
		if !ok || nt.Behavior != BehaviorEvent {
			continue
		}
		if n.ID == "Start" || n.Data.Label == "Start" {
			if found != nil {
				return nil, fmt.Errorf("workflow: multiple Start nodes found")
			}
			found = n
		}
	}
	if found == nil {
		return nil, fmt.Errorf("workflow: no Start node found")
	}
	return found, nil
}

// Validate performs the structural checks required before a graph may be
// scheduled to run: exactly one EVENT/Start node, every node's type is
// known, every edge's source and target exist, and every GATEWAY has at
// least one outgoing edge. TASK nodes with an empty step_function are not
// rejected here.
func Validate(s Structure, nodeTypeOf func(shapeName string) (NodeType, bool)) []string {
	var errs []string
	idx := BuildIndex(s)

	if _, err := FindStart(s, nodeTypeOf); err != nil {
		errs = append(errs, err.Error())
	}

	for i := range s.Nodes {
		n := &s.Nodes[i]
		if _, ok := nodeTypeOf(n.Data.Type); !ok {
			errs = append(errs, fmt.Sprintf("node %q: unknown node type %q", n.ID, n.Data.Type))
		}
	}

	for i := range s.Edges {
		e := &s.Edges[i]
		if _, ok := idx.NodesByID[e.Source]; !ok {
			errs = append(errs, fmt.Sprintf("edge: unknown source node %q", e.Source))
		}
		if _, ok := idx.NodesByID[e.Target]; !ok {
			errs = append(errs, fmt.Sprintf("edge: unknown target node %q", e.Target))
		}
	}

	for i := range s.Nodes {
		n := &s.Nodes[i]
		nt, ok := nodeTypeOf(n.Data.Type)
		if !ok || nt.Behavior != BehaviorGateway {
			continue
		}
		if len(idx.EdgesBySrc[n.ID]) == 0 {
			errs = append(errs, fmt.Sprintf("gateway node %q has no outgoing edges", n.ID))
		}
	}

	return errs
}
