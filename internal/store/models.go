package store

import "time"

// Tag status values.
const (
	TagStatusValid   = 0
	TagStatusInvalid = 1
)

// Tag type values, recorded on the relation between a tag and whoever attached it.
const (
	TagTypeCreator  = 0
	TagTypeArticle  = 1
	TagTypeUserSelf = 2
)

type Tag struct {
	ID             int64     `db:"id"`
	Title          string    `db:"title"`
	TitleLowerCase string    `db:"title_lower"`
	URI            string    `db:"uri"`
	IconPath       string    `db:"icon_path"`
	Description    string    `db:"description"`
	ReferenceCount int       `db:"reference_count"`
	Status         int       `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// IsIconTag reports whether the tag takes part in title canonicalization.
func (t *Tag) IsIconTag() bool {
	return t.Status == TagStatusValid && t.IconPath != ""
}

type TagCreate struct {
	Title       string
	Description string
}
