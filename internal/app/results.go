package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/rocatrun/internal/adapters/mq/queue"
	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
	"github.com/okian/rocatrun/pkg/metrics"
)

// SubmitGameResult queues a finished run for asynchronous application. An
// event id already seen reports duplicate=true and is not queued again. A
// missing event id is generated. When the queue is full the id is forgotten
// so the client can retry, and ErrBackpressure is returned.
func (s *Service) SubmitGameResult(ctx context.Context, req types.GameResultRequest) (eventID string, duplicate bool, err error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}
	if err := req.Validate(); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	// Unknown characters are rejected up front rather than failing in a worker.
	if _, err := s.store.Character(ctx, req.CharacterID); err != nil {
		return "", false, err
	}

	eventID = strings.TrimSpace(req.EventID)
	if eventID == "" {
		eventID = uuid.NewString()
	}

	if s.deduper.SeenAndRecord(ctx, eventID) {
		metrics.RecordResultDuplicate()
		s.logger.Debug(ctx, "duplicate game result", logger.String("event_id", eventID))
		return eventID, true, nil
	}

	result := model.GameResult{
		EventID:     eventID,
		CharacterID: req.CharacterID,
		Experience:  req.Exp,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, result); err != nil {
		s.deduper.Unrecord(ctx, eventID)
		if errors.Is(err, eventqueue.ErrFull) || errors.Is(err, eventqueue.ErrClosed) {
			return "", false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return "", false, err
	}

	metrics.RecordResultAccepted()
	return eventID, false, nil
}

// ApplyGameResult grants the experience of a queued result. Workers call it.
func (s *Service) ApplyGameResult(ctx context.Context, r model.GameResult) (model.LevelUp, error) {
	return s.grant(ctx, r.CharacterID, r.Experience)
}
