package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
)

const (
	nicknameLength   = 6
	nicknameAttempts = 5
)

var genders = []string{"MALE", "FEMALE"}

// randomNickname returns six hex characters, which always pass nickname validation.
func randomNickname() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:nicknameLength]
}

func randomCreateRequest(name string) types.CreateCharacterRequest {
	return types.CreateCharacterRequest{
		Nickname: name,
		Height:   150 + rand.Float64()*50,
		Weight:   45 + rand.Float64()*50,
		Age:      15 + rand.IntN(50),
		Gender:   genders[rand.IntN(len(genders))],
	}
}

// createPlayers registers cfg.Players members and gives each a character.
func createPlayers(ctx context.Context, c *client, cfg *Config, stats *Stats) ([]*Player, error) {
	log := logger.Get()
	log.Info(ctx, "creating players", logger.Int("players", cfg.Players), logger.Int("workers", cfg.Workers))

	players := make([]*Player, cfg.Players)
	errs := make([]error, cfg.Players)

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(cfg.Workers, cfg.Players); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				players[i], errs[i] = createPlayer(ctx, c)
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range players {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create players: %w", err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create players: %w", err)
	}

	stats.PlayersCreated = len(players)
	log.Info(ctx, "players created", logger.Int("count", len(players)))
	return players, nil
}

func createPlayer(ctx context.Context, c *client) (*Player, error) {
	var member types.MemberResponse
	if _, err := c.do(ctx, http.MethodPost, "/members", nil, &member); err != nil {
		return nil, err
	}

	path := "/members/" + strconv.FormatInt(member.MemberID, 10) + "/character"
	var lastErr error
	for attempt := 0; attempt < nicknameAttempts; attempt++ {
		var character types.CharacterResponse
		status, err := c.do(ctx, http.MethodPost, path, randomCreateRequest(randomNickname()), &character)
		if err == nil {
			return &Player{
				MemberID:    member.MemberID,
				CharacterID: character.CharacterID,
				Nickname:    character.Nickname,
			}, nil
		}
		lastErr = err
		if status != http.StatusConflict {
			break
		}
	}
	return nil, fmt.Errorf("member %d: %w", member.MemberID, lastErr)
}
