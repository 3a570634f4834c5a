package affiliate

import "github.com/HSouheill/vpn_reseller_backend/models"

// downline indexes a snapshot of active edges by parent
type downline map[string][]string

func indexByParent(edges []models.AffiliateRelationship) downline {
	idx := make(downline, len(edges))
	for _, edge := range edges {
		if edge.Status != models.RelationshipActive || edge.ParentID == edge.ChildID {
			continue
		}
		idx[edge.ParentID] = append(idx[edge.ParentID], edge.ChildID)
	}
	return idx
}

// descendants walks breadth-first from root and returns every reachable node
// with its distance from root. Root itself is never included, so duplicated
// edges or loops back to the root cannot inflate the result.
func (d downline) descendants(root string) map[string]int {
	visited := map[string]int{}
	seen := map[string]struct{}{root: {}}
	queue := []string{root}
	dist := map[string]int{root: 0}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range d[node] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			dist[child] = dist[node] + 1
			visited[child] = dist[child]
			queue = append(queue, child)
		}
	}
	return visited
}
