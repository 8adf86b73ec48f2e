package task

// wouldCreateCycle reports whether the prospective blocked-by graph contains
// a cycle reachable from start. Callers build edges from the stored tasks
// plus any additions being validated.
//
// The walk is a depth-first search with an explicit stack and gray/black
// coloring, so deep dependency chains cannot exhaust the call stack. A node
// revisited while still on the in-progress path signals a cycle.
func wouldCreateCycle(edges map[string][]string, start string) bool {
	const (
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(edges))

	type frame struct {
		node string
		next int
	}
	stack := []frame{{node: start}}
	color[start] = gray

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := edges[top.node]

		if top.next >= len(deps) {
			color[top.node] = black
			stack = stack[:len(stack)-1]
			continue
		}

		dep := deps[top.next]
		top.next++

		switch color[dep] {
		case gray:
			return true
		case black:
			continue
		default:
			color[dep] = gray
			stack = append(stack, frame{node: dep})
		}
	}
	return false
}
