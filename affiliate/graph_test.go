package affiliate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

func activeEdge(parent, child string) models.AffiliateRelationship {
	return models.AffiliateRelationship{ParentID: parent, ChildID: child, Status: models.RelationshipActive}
}

func TestDescendantsDistances(t *testing.T) {
	idx := indexByParent([]models.AffiliateRelationship{
		activeEdge("U", "A"), activeEdge("U", "B"), activeEdge("A", "C"), activeEdge("C", "D"),
	})
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 2, "D": 3}, idx.descendants("U"))
	assert.Empty(t, idx.descendants("D"))
}

func TestDescendantsTerminatesOnLoops(t *testing.T) {
	idx := indexByParent([]models.AffiliateRelationship{
		activeEdge("A", "B"), activeEdge("B", "C"), activeEdge("C", "A"), activeEdge("C", "C"),
	})
	assert.Equal(t, map[string]int{"B": 1, "C": 2}, idx.descendants("A"))
}

func TestIndexSkipsInactiveEdges(t *testing.T) {
	inactive := activeEdge("A", "B")
	inactive.Status = models.RelationshipInactive
	idx := indexByParent([]models.AffiliateRelationship{inactive})
	assert.Empty(t, idx.descendants("A"))
}
