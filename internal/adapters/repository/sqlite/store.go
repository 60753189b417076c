// Package sqlite provides the SQLite-backed game store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/rocatrun/internal/adapters/repository"
	"github.com/okian/rocatrun/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/progression"
	"github.com/okian/rocatrun/pkg/metrics"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const dsnParams = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store persists members, characters, levels and inventories in SQLite.
//
// The pool holds a single connection, so every transaction runs alone and a
// read-modify-write of one character cannot interleave with another.
type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// observe records latency and failure of one store operation. Not-found
// results are expected and do not count as errors.
func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds()))
	if *err != nil && !errors.Is(*err, repository.ErrNotFound) {
		metrics.RecordStoreError(op)
	}
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateMember inserts a member with an empty body profile.
func (s *Store) CreateMember(ctx context.Context) (m model.Member, err error) {
	defer observe("create_member", time.Now(), &err)

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO members (created_at) VALUES (?)`, toMillis(now))
	if err != nil {
		return model.Member{}, fmt.Errorf("create member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Member{}, fmt.Errorf("create member: %w", err)
	}
	return model.Member{ID: id, CreatedAt: fromMillis(toMillis(now))}, nil
}

// Member returns one member by id.
func (s *Store) Member(ctx context.Context, id int64) (m model.Member, err error) {
	defer observe("get_member", time.Now(), &err)
	return scanMember(ctx, s.db, id)
}

func scanMember(ctx context.Context, q querier, id int64) (model.Member, error) {
	var (
		m         model.Member
		gender    string
		createdAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, height, weight, age, gender, created_at FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.Height, &m.Weight, &m.Age, &gender, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, repository.ErrMemberNotFound
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("get member: %w", err)
	}
	m.Gender = model.Gender(gender)
	m.CreatedAt = fromMillis(createdAt)
	return m, nil
}

// CreateCharacter stores the body profile of c.MemberID and inserts c.
func (s *Store) CreateCharacter(ctx context.Context, p model.BodyProfile, c model.Character) (out model.Character, err error) {
	defer observe("create_character", time.Now(), &err)

	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE members SET height = ?, weight = ?, age = ?, gender = ? WHERE id = ?`,
			p.Height, p.Weight, p.Age, string(p.Gender), c.MemberID,
		)
		if err != nil {
			return fmt.Errorf("update member profile: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repository.ErrMemberNotFound
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO characters (member_id, nickname, level, experience, image, coin, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.MemberID, c.Nickname, c.Level, c.Experience, c.Image, c.Coin, toMillis(now), toMillis(now),
		)
		if err != nil {
			switch {
			case isUniqueViolation(err, "characters.member_id"):
				return repository.ErrCharacterExists
			case isUniqueViolation(err, "characters.nickname"):
				return repository.ErrNicknameTaken
			}
			return fmt.Errorf("insert character: %w", err)
		}
		c.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert character: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Character{}, err
	}
	c.CreatedAt = fromMillis(toMillis(now))
	c.UpdatedAt = c.CreatedAt
	return c, nil
}

// NicknameExists reports whether any character uses nickname.
func (s *Store) NicknameExists(ctx context.Context, nickname string) (exists bool, err error) {
	defer observe("nickname_exists", time.Now(), &err)

	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM characters WHERE nickname = ?)`, nickname,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check nickname: %w", err)
	}
	return exists, nil
}

const characterColumns = `id, member_id, nickname, level, experience, image, coin, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(r rowScanner) (model.Character, error) {
	var (
		c                    model.Character
		createdAt, updatedAt int64
	)
	if err := r.Scan(&c.ID, &c.MemberID, &c.Nickname, &c.Level, &c.Experience, &c.Image, &c.Coin, &createdAt, &updatedAt); err != nil {
		return model.Character{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func characterByID(ctx context.Context, q querier, id int64) (model.Character, error) {
	c, err := scanCharacter(q.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Character{}, repository.ErrCharacterNotFound
	}
	if err != nil {
		return model.Character{}, fmt.Errorf("get character: %w", err)
	}
	return c, nil
}

// CharacterByMember returns the character owned by memberID.
func (s *Store) CharacterByMember(ctx context.Context, memberID int64) (c model.Character, err error) {
	defer observe("get_character_by_member", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := scanMember(ctx, tx, memberID); err != nil {
			return err
		}
		c, err = scanCharacter(tx.QueryRowContext(ctx,
			`SELECT `+characterColumns+` FROM characters WHERE member_id = ?`, memberID))
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrCharacterNotFound
		}
		if err != nil {
			return fmt.Errorf("get character: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Character{}, err
	}
	return c, nil
}

// Character returns one character by id.
func (s *Store) Character(ctx context.Context, id int64) (c model.Character, err error) {
	defer observe("get_character", time.Now(), &err)
	return characterByID(ctx, s.db, id)
}

// Characters returns every character. Used to rebuild the ranking index.
func (s *Store) Characters(ctx context.Context) (out []model.Character, err error) {
	defer observe("list_characters", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters ORDER BY level DESC, experience DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("list characters: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return out, nil
}

// UpdateNickname renames a character and returns the row as committed.
func (s *Store) UpdateNickname(ctx context.Context, characterID int64, nickname string) (c model.Character, err error) {
	defer observe("update_nickname", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE characters SET nickname = ?, updated_at = ? WHERE id = ?`,
			nickname, toMillis(time.Now()), characterID,
		)
		if err != nil {
			if isUniqueViolation(err, "characters.nickname") {
				return repository.ErrNicknameTaken
			}
			return fmt.Errorf("update nickname: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repository.ErrCharacterNotFound
		}
		c, err = characterByID(ctx, tx, characterID)
		return err
	})
	if err != nil {
		return model.Character{}, err
	}
	return c, nil
}

// UpdateImage stores a new image URL. It returns the row as committed and
// the image it replaced.
func (s *Store) UpdateImage(ctx context.Context, characterID int64, image string) (c model.Character, previous string, err error) {
	defer observe("update_image", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := characterByID(ctx, tx, characterID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE characters SET image = ?, updated_at = ? WHERE id = ?`,
			image, toMillis(now), characterID,
		); err != nil {
			return fmt.Errorf("update image: %w", err)
		}
		previous = cur.Image
		c = cur
		c.Image, c.UpdatedAt = image, fromMillis(toMillis(now))
		return nil
	})
	if err != nil {
		return model.Character{}, "", err
	}
	return c, previous, nil
}

// ImagesEndingWith returns the distinct images of characters other than
// excludeID whose URL ends with suffix.
func (s *Store) ImagesEndingWith(ctx context.Context, suffix string, excludeID int64) (out []string, err error) {
	defer observe("images_ending_with", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT image FROM characters WHERE image LIKE ? ESCAPE '\' AND id <> ?`,
		"%"+likeEscaper.Replace(suffix), excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var image string
		if err := rows.Scan(&image); err != nil {
			return nil, fmt.Errorf("list images: %w", err)
		}
		out = append(out, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// GrantExperience applies exp to a character inside one transaction.
func (s *Store) GrantExperience(ctx context.Context, characterID int64, exp int, lookup progression.RequirementLookup) (lu model.LevelUp, c model.Character, err error) {
	defer observe("grant_experience", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := characterByID(ctx, tx, characterID)
		if err != nil {
			return err
		}

		res, err := progression.Apply(ctx, cur.Progress(), exp, lookup)
		if err != nil {
			return fmt.Errorf("character %d: %w", characterID, err)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE characters SET level = ?, experience = ?, updated_at = ? WHERE id = ?`,
			res.Level, res.Experience, toMillis(now), characterID,
		); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		lu = model.LevelUp{
			CharacterID:  characterID,
			OldLevel:     cur.Level,
			NewLevel:     res.Level,
			Experience:   res.Experience,
			HasLeveledUp: res.LeveledUp,
		}
		c = cur
		c.Level, c.Experience, c.UpdatedAt = res.Level, res.Experience, fromMillis(toMillis(now))
		return nil
	})
	if err != nil {
		return model.LevelUp{}, model.Character{}, err
	}
	return lu, c, nil
}

// LevelRequirements returns the level table ordered by level.
func (s *Store) LevelRequirements(ctx context.Context) (out []progression.Requirement, err error) {
	defer observe("list_levels", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT level, required_exp FROM levels ORDER BY level`)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r progression.Requirement
		if err := rows.Scan(&r.Level, &r.RequiredExp); err != nil {
			return nil, fmt.Errorf("list levels: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return out, nil
}

// isUniqueViolation reports whether err is a unique or primary key violation
// on column (given as table.column).
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return strings.Contains(message, column)
		}
	}
	return strings.Contains(message, "unique constraint failed") && strings.Contains(message, column)
}
