package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/rocatrun/internal/adapters/imagestore"
	"github.com/okian/rocatrun/internal/adapters/repository"
	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/nickname"
	"github.com/okian/rocatrun/internal/domain/progression"
	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
	"github.com/okian/rocatrun/pkg/metrics"
)

// RegisterMember creates a member without a character.
func (s *Service) RegisterMember(ctx context.Context) (model.Member, error) {
	if err := s.ready(); err != nil {
		return model.Member{}, err
	}
	return s.store.CreateMember(ctx)
}

// CheckNicknameDuplicate validates the format of name and reports whether
// another character already uses it.
func (s *Service) CheckNicknameDuplicate(ctx context.Context, name string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	name = nickname.Normalize(name)
	if err := nickname.Validate(name); err != nil {
		metrics.RecordNicknameRejected(nickname.Code(err))
		return false, err
	}
	exists, err := s.store.NicknameExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		metrics.RecordNicknameCheck("taken")
	} else {
		metrics.RecordNicknameCheck("free")
	}
	return exists, nil
}

// checkNickname validates name and fails with nickname.ErrDuplicate when it
// is in use.
func (s *Service) checkNickname(ctx context.Context, name string) error {
	if err := nickname.Validate(name); err != nil {
		metrics.RecordNicknameRejected(nickname.Code(err))
		return err
	}
	exists, err := s.store.NicknameExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		metrics.RecordNicknameRejected(nickname.CodeDuplicate)
		return nickname.ErrDuplicate
	}
	return nil
}

// duplicateNickname maps a store uniqueness failure, which happens when two
// requests race for the same name, to the nickname error.
func duplicateNickname(err error) error {
	if errors.Is(err, repository.ErrNicknameTaken) {
		metrics.RecordNicknameRejected(nickname.CodeDuplicate)
		return fmt.Errorf("%w: %w", nickname.ErrDuplicate, err)
	}
	return err
}

// CreateCharacter creates the member's character at level one.
func (s *Service) CreateCharacter(ctx context.Context, memberID int64, req types.CreateCharacterRequest) (model.Character, error) {
	if err := s.ready(); err != nil {
		return model.Character{}, err
	}
	if _, err := s.store.Member(ctx, memberID); err != nil {
		return model.Character{}, err
	}
	profile, err := req.Profile()
	if err != nil {
		return model.Character{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	name := nickname.Normalize(req.Nickname)
	if err := s.checkNickname(ctx, name); err != nil {
		return model.Character{}, err
	}

	c, err := s.store.CreateCharacter(ctx, profile, model.NewCharacter(memberID, name, s.defaultImage))
	if err != nil {
		return model.Character{}, duplicateNickname(err)
	}

	s.ranking.Advance(ctx, c)
	s.ranking.UpdateProfile(ctx, c)
	metrics.RecordCharacterCreated()
	s.logger.Info(ctx, "character created",
		logger.Int64("member_id", memberID),
		logger.Int64("character_id", c.ID),
		logger.String("nickname", c.Nickname),
	)
	return c, nil
}

// GetCharacterByMemberID returns the member's character. It fails with
// repository.ErrMemberNotFound or repository.ErrCharacterNotFound.
func (s *Service) GetCharacterByMemberID(ctx context.Context, memberID int64) (model.Character, error) {
	if err := s.ready(); err != nil {
		return model.Character{}, err
	}
	return s.store.CharacterByMember(ctx, memberID)
}

// GetCharacterResponse returns the member's character with the experience
// its current level requires. RequiredExp is nil at the max level.
func (s *Service) GetCharacterResponse(ctx context.Context, memberID int64) (types.CharacterResponse, error) {
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return types.CharacterResponse{}, err
	}
	return s.CharacterResponse(ctx, c)
}

// CharacterResponse adds the required experience of c's level.
func (s *Service) CharacterResponse(ctx context.Context, c model.Character) (types.CharacterResponse, error) {
	if c.Level >= progression.MaxLevel {
		return types.NewCharacterResponse(c, nil), nil
	}
	req, err := s.levels.RequiredExp(ctx, c.Level)
	if err != nil {
		return types.CharacterResponse{}, &progression.MissingLevelDefinitionError{Level: c.Level, Err: err}
	}
	return types.NewCharacterResponse(c, &req), nil
}

// UpdateNickname renames the member's character. Keeping the current name
// is a no-op.
func (s *Service) UpdateNickname(ctx context.Context, memberID int64, name string) (model.Character, error) {
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return model.Character{}, err
	}
	name = nickname.Normalize(name)
	if name == c.Nickname {
		return c, nil
	}
	if err := s.checkNickname(ctx, name); err != nil {
		return model.Character{}, err
	}
	c, err = s.store.UpdateNickname(ctx, c.ID, name)
	if err != nil {
		return model.Character{}, duplicateNickname(err)
	}

	s.ranking.UpdateProfile(ctx, c)
	return c, nil
}

// UpdateCharacterImage stores a new image URL for the member's character and
// deletes the replaced image unless it is still referenced. A failed delete
// is logged and does not fail the update.
func (s *Service) UpdateCharacterImage(ctx context.Context, memberID int64, imageURL string) (model.Character, error) {
	if err := s.ready(); err != nil {
		return model.Character{}, err
	}
	if err := (types.ImageUpdateRequest{ImageURL: imageURL}).Validate(); err != nil {
		return model.Character{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	c, err := s.GetCharacterByMemberID(ctx, memberID)
	if err != nil {
		return model.Character{}, err
	}

	c, previous, err := s.store.UpdateImage(ctx, c.ID, imageURL)
	if err != nil {
		return model.Character{}, err
	}
	s.ranking.UpdateProfile(ctx, c)
	metrics.RecordImageReplaced()

	if s.images != nil && !s.imageInUse(ctx, c.ID, previous, imageURL) {
		if err := s.images.Delete(ctx, previous); err != nil {
			metrics.RecordErrorByComponent("imagestore", "delete_failed")
			s.logger.Warn(ctx, "failed to delete replaced image",
				logger.Int64("character_id", c.ID),
				logger.String("image", previous),
				logger.Error(err),
			)
		}
	}
	return c, nil
}

// imageInUse reports whether the object behind previous is the default
// image, the new image, or the image of another character. Lookup failures
// count as in use.
func (s *Service) imageInUse(ctx context.Context, characterID int64, previous, current string) bool {
	if imagestore.SameObject(previous, s.defaultImage) || imagestore.SameObject(previous, current) {
		return true
	}
	name, err := imagestore.ObjectName(previous)
	if err != nil {
		return true
	}
	others, err := s.store.ImagesEndingWith(ctx, name, characterID)
	if err != nil {
		s.logger.Warn(ctx, "failed to check image references",
			logger.Int64("character_id", characterID),
			logger.String("image", previous),
			logger.Error(err),
		)
		return true
	}
	for _, other := range others {
		if imagestore.SameObject(previous, other) {
			return true
		}
	}
	return false
}

// AddExperience grants exp to a character and reports any level change.
func (s *Service) AddExperience(ctx context.Context, characterID int64, exp int) (model.LevelUp, error) {
	if err := s.ready(); err != nil {
		return model.LevelUp{}, err
	}
	return s.grant(ctx, characterID, exp)
}

// grant does not take s.mu so workers can run while Stop drains the queue.
func (s *Service) grant(ctx context.Context, characterID int64, exp int) (model.LevelUp, error) {
	lu, c, err := s.store.GrantExperience(ctx, characterID, exp, s.levels)
	if err != nil {
		switch {
		case errors.Is(err, progression.ErrMissingLevelDefinition):
			metrics.RecordProgressionFailure("missing_level_definition")
			s.logger.Error(ctx, "level table is missing a level",
				logger.Int64("character_id", characterID),
				logger.Int("exp", exp),
				logger.Error(err),
			)
		case errors.Is(err, progression.ErrInvalidProgress):
			metrics.RecordProgressionFailure("invalid_input")
			err = fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return model.LevelUp{}, err
	}

	s.ranking.Advance(ctx, c)
	metrics.RecordExperienceGranted(exp)
	metrics.RecordLevelUp(lu.OldLevel, lu.NewLevel)
	if lu.HasLeveledUp && s.levelUp != nil {
		s.levelUp.PublishLevelUp(ctx, lu)
	}
	return lu, nil
}
