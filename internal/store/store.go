package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")
var ErrDuplicate = errors.New("duplicate tag")

const defaultPageSize = 100

const tagColumns = "id, title, title_lower, uri, icon_path, description, reference_count, status, created_at, updated_at"

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTag inserts a tag. On a title collision it returns the existing tag with ErrDuplicate.
func (s *Store) CreateTag(ctx context.Context, in TagCreate) (*Tag, error) {
	title := strings.TrimSpace(in.Title)
	query := `INSERT INTO tag (title, title_lower, uri, icon_path, description, reference_count, status)
	VALUES (?, ?, ?, '', ?, 0, ?)`
	res, err := s.db.ExecContext(ctx, query, title, TitleLowerCase(title), TagURI(title), in.Description, TagStatusValid)
	if err != nil {
		if isDuplicate(err) {
			existing, getErr := s.GetTagByTitle(ctx, title)
			if getErr == nil {
				return existing, ErrDuplicate
			}
			return nil, ErrDuplicate
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetTag(ctx, id)
}

func (s *Store) GetTag(ctx context.Context, id int64) (*Tag, error) {
	return s.fetchTag(ctx, "id = ?", id)
}

func (s *Store) GetTagByTitle(ctx context.Context, title string) (*Tag, error) {
	return s.fetchTag(ctx, "title_lower = ?", TitleLowerCase(title))
}

func (s *Store) fetchTag(ctx context.Context, where string, arg any) (*Tag, error) {
	var t Tag
	err := s.db.GetContext(ctx, &t, "SELECT "+tagColumns+" FROM tag WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListIconTags returns every valid tag that has an icon, most referenced first.
func (s *Store) ListIconTags(ctx context.Context) ([]Tag, error) {
	query := "SELECT " + tagColumns + " FROM tag WHERE status = ? AND icon_path <> '' ORDER BY reference_count DESC, id ASC"
	var tags []Tag
	if err := s.db.SelectContext(ctx, &tags, query, TagStatusValid); err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *Store) SetTagIcon(ctx context.Context, id int64, iconPath string) (*Tag, error) {
	return s.update(ctx, id, "icon_path = ?", iconPath)
}

func (s *Store) SetTagStatus(ctx context.Context, id int64, status int) (*Tag, error) {
	return s.update(ctx, id, "status = ?", status)
}

func (s *Store) update(ctx context.Context, id int64, set string, arg any) (*Tag, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM tag WHERE id = ?", id); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "UPDATE tag SET "+set+", updated_at = NOW(6) WHERE id = ?", arg, id); err != nil {
		return nil, err
	}

	var t Tag
	if err := tx.GetContext(ctx, &t, "SELECT "+tagColumns+" FROM tag WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTags(ctx context.Context, prefix string, page, pageSize int) ([]Tag, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	offset := (page - 1) * pageSize

	where := ""
	args := []any{}
	if prefix != "" {
		where = "WHERE title_lower LIKE ?"
		args = append(args, prefixPattern(prefix))
	}

	countQuery := "SELECT COUNT(*) FROM tag " + where
	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + tagColumns + " FROM tag " + where + " ORDER BY title_lower LIMIT ? OFFSET ?"
	argsWithPaging := append(append([]any{}, args...), pageSize, offset)
	var tags []Tag
	if err := s.db.SelectContext(ctx, &tags, query, argsWithPaging...); err != nil {
		return nil, 0, err
	}
	return tags, total, nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate") || strings.Contains(strings.ToLower(err.Error()), "unique")
}
