package affiliate

import (
	"context"
	"fmt"
	"strings"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

// StatsService reports downline size. It ignores the payout level limit.
type StatsService struct {
	relationships RelationshipStore
}

func NewStatsService(deps Dependencies) *StatsService {
	return &StatsService{relationships: deps.Relationships}
}

// GetNetworkStats counts direct referrals, all distinct descendants and the
// deepest level reached below userID.
func (s *StatsService) GetNetworkStats(ctx context.Context, userID string) (models.NetworkStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.NetworkStats{}, ErrInvalidInput
	}

	direct, err := s.relationships.FindActiveByParent(ctx, userID)
	if err != nil {
		return models.NetworkStats{}, fmt.Errorf("find referrals of %s: %w", userID, err)
	}
	children := make(map[string]struct{}, len(direct))
	for _, edge := range direct {
		if edge.ChildID != userID {
			children[edge.ChildID] = struct{}{}
		}
	}

	edges, err := s.relationships.AllActiveEdges(ctx)
	if err != nil {
		return models.NetworkStats{}, fmt.Errorf("load referral graph: %w", err)
	}

	stats := models.NetworkStats{Direct: len(children)}
	for _, depth := range indexByParent(edges).descendants(userID) {
		stats.Total++
		if depth > stats.Depth {
			stats.Depth = depth
		}
	}
	return stats, nil
}
