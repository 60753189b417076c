package service

import (
	"context"

	"github.com/okian/rocatrun/internal/adapters/repository"
	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/metrics"
)

func rankingResponse(e repository.RankEntry) types.RankingResponse {
	return types.RankingResponse{
		Rank:           e.Rank,
		CharacterID:    e.CharacterID,
		Nickname:       e.Nickname,
		Level:          e.Level,
		Experience:     e.Experience,
		CharacterImage: e.Image,
	}
}

// GetRankings returns the member's own ranking and the top list without it.
func (s *Service) GetRankings(ctx context.Context, memberID int64) (types.RankingListResponse, error) {
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return types.RankingListResponse{}, err
	}
	metrics.RecordRankingQuery()

	mine, err := s.ranking.Rank(ctx, c.ID)
	if err != nil {
		return types.RankingListResponse{}, err
	}
	top, err := s.ranking.TopN(ctx, s.maxRankingSize, c.ID)
	if err != nil {
		return types.RankingListResponse{}, err
	}

	out := types.RankingListResponse{
		MyRanking: rankingResponse(mine),
		Rankings:  make([]types.RankingResponse, len(top)),
	}
	for i, e := range top {
		out.Rankings[i] = rankingResponse(e)
	}
	return out, nil
}
