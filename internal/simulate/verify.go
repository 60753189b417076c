package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
)

const (
	drainPollInterval = 100 * time.Millisecond
	// in-flight results may still be applied after the queue reports empty
	drainGrace        = 250 * time.Millisecond
	rankingSampleSize = 10
)

// ErrVerification reports rankings that disagree with the granted experience.
var ErrVerification = errors.New("verification failed")

// waitForDrain polls /stats until the game result queue is empty.
func waitForDrain(ctx context.Context, c *client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		var stats map[string]any
		if _, err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
			return fmt.Errorf("wait for drain: %w", err)
		}
		if n, ok := stats["queueLength"].(float64); ok && n == 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("wait for drain: %w", ctx.Err())
			case <-time.After(drainGrace):
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for drain: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

type observed struct {
	player    *Player
	character types.CharacterResponse
}

// ahead reports whether a ranks strictly before b.
func ahead(aLevel, aExp, bLevel, bExp int) bool {
	if aLevel != bLevel {
		return aLevel > bLevel
	}
	return aExp > bExp
}

// verify fetches every character and checks that more granted experience
// never ranks lower, then samples ranking lists for ordering.
func verify(ctx context.Context, c *client, players []*Player, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying characters and rankings", logger.Int("players", len(players)))

	seen := make([]observed, 0, len(players))
	for _, p := range players {
		var ch types.CharacterResponse
		path := "/members/" + strconv.FormatInt(p.MemberID, 10) + "/character"
		if _, err := c.do(ctx, http.MethodGet, path, nil, &ch); err != nil {
			return fmt.Errorf("fetch character of member %d: %w", p.MemberID, err)
		}
		if p.GrantedExp == 0 && (ch.Level != 1 || ch.Experience != 0) {
			return fmt.Errorf("%w: character %d has progress without accepted runs", ErrVerification, p.CharacterID)
		}
		seen = append(seen, observed{player: p, character: ch})
	}

	sort.SliceStable(seen, func(i, j int) bool { return seen[i].player.GrantedExp > seen[j].player.GrantedExp })
	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		if prev.player.GrantedExp > cur.player.GrantedExp &&
			ahead(cur.character.Level, cur.character.Experience, prev.character.Level, prev.character.Experience) {
			return fmt.Errorf("%w: character %d (granted %d) ranks ahead of character %d (granted %d)",
				ErrVerification, cur.player.CharacterID, cur.player.GrantedExp,
				prev.player.CharacterID, prev.player.GrantedExp)
		}
	}

	for i := 0; i < min(rankingSampleSize, len(seen)); i++ {
		if err := verifyRankingList(ctx, c, seen[i]); err != nil {
			return err
		}
		stats.RankingsChecked++
	}

	log.Info(ctx, "verification passed",
		logger.Int("characters", len(seen)),
		logger.Int("rankings_checked", stats.RankingsChecked))
	return nil
}

func verifyRankingList(ctx context.Context, c *client, o observed) error {
	var list types.RankingListResponse
	path := "/members/" + strconv.FormatInt(o.player.MemberID, 10) + "/rankings"
	if _, err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return fmt.Errorf("fetch rankings of member %d: %w", o.player.MemberID, err)
	}

	me := list.MyRanking
	if me.CharacterID != o.player.CharacterID || me.Level != o.character.Level || me.Experience != o.character.Experience {
		return fmt.Errorf("%w: my_ranking of member %d does not match the character", ErrVerification, o.player.MemberID)
	}
	if me.Rank < 1 {
		return fmt.Errorf("%w: member %d has rank %d", ErrVerification, o.player.MemberID, me.Rank)
	}

	for i, r := range list.Rankings {
		if r.CharacterID == me.CharacterID {
			return fmt.Errorf("%w: rankings of member %d include the member", ErrVerification, o.player.MemberID)
		}
		if i == 0 {
			continue
		}
		prev := list.Rankings[i-1]
		if ahead(r.Level, r.Experience, prev.Level, prev.Experience) || r.Rank < prev.Rank {
			return fmt.Errorf("%w: rankings of member %d are out of order at position %d",
				ErrVerification, o.player.MemberID, i)
		}
	}
	return nil
}
