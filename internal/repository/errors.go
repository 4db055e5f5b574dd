package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Constraint names created by database.Migrate. Postgres reports them
// directly; sqlite reports column lists, which sqliteUniqueColumns maps back.
const (
	ConstraintStoryUserPerDay   = "uq_story_user_per_day"
	ConstraintStoryDevicePerDay = "uq_story_device_per_day"
	ConstraintStoryIPPerDay     = "uq_story_ip_per_day"
	ConstraintStoryPublicID     = "uq_stories_public_id"
	ConstraintUsersUsername     = "uq_users_username_lower"
	ConstraintUsersEmail        = "uq_users_email"
	ConstraintUsersPublicID     = "uq_users_public_id"
	ConstraintPromptDate        = "uq_daily_prompts_date"
	ConstraintFlowersPkey       = "flowers_pkey"
)

var sqliteUniqueColumns = map[string]string{
	"stories.prompt_id, stories.user_id":      ConstraintStoryUserPerDay,
	"stories.prompt_id, stories.device_token": ConstraintStoryDevicePerDay,
	"stories.prompt_id, stories.ip_hash":      ConstraintStoryIPPerDay,
	"stories.public_id":                       ConstraintStoryPublicID,
	"users.email":                             ConstraintUsersEmail,
	"users.public_id":                         ConstraintUsersPublicID,
	"daily_prompts.prompt_date":               ConstraintPromptDate,
	"flowers.story_id, flowers.user_id":       ConstraintFlowersPkey,
}

type ConstraintKind int

const (
	ConstraintUnique ConstraintKind = iota + 1
	ConstraintForeignKey
	ConstraintCheck
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign_key"
	case ConstraintCheck:
		return "check"
	default:
		return "unknown"
	}
}

// ConstraintError is a database constraint violation with a stable identifier.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint %q violated: %v", e.Kind, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// AsConstraintError extracts a ConstraintError from err's chain.
func AsConstraintError(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err violated one of the named unique
// constraints, or any unique constraint when none are given.
func IsUniqueViolation(err error, constraints ...string) bool {
	ce, ok := AsConstraintError(err)
	if !ok || ce.Kind != ConstraintUnique {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, name := range constraints {
		if ce.Constraint == name {
			return true
		}
	}
	return false
}

// translateError turns driver constraint failures into *ConstraintError and
// passes every other error through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := pgConstraintKind(pgErr.Code)
		if kind == 0 {
			return err
		}
		return &ConstraintError{Kind: kind, Constraint: pgErr.ConstraintName, Err: err}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		kind := sqliteConstraintKind(liteErr.ExtendedCode)
		if kind == 0 {
			return err
		}
		return &ConstraintError{Kind: kind, Constraint: sqliteConstraintName(liteErr.Error()), Err: err}
	}

	return err
}

func pgConstraintKind(code string) ConstraintKind {
	switch code {
	case "23505":
		return ConstraintUnique
	case "23503":
		return ConstraintForeignKey
	case "23514":
		return ConstraintCheck
	default:
		return 0
	}
}

func sqliteConstraintKind(code sqlite3.ErrNoExtended) ConstraintKind {
	switch code {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ConstraintUnique
	case sqlite3.ErrConstraintForeignKey:
		return ConstraintForeignKey
	case sqlite3.ErrConstraintCheck:
		return ConstraintCheck
	default:
		return 0
	}
}

// sqliteConstraintName recovers the index name from messages such as
// "UNIQUE constraint failed: stories.prompt_id, stories.user_id" or
// "UNIQUE constraint failed: index 'uq_users_username_lower'".
func sqliteConstraintName(msg string) string {
	_, detail, found := strings.Cut(msg, "constraint failed: ")
	if !found {
		return ""
	}
	detail = strings.TrimSpace(detail)

	if rest, ok := strings.CutPrefix(detail, "index '"); ok {
		return strings.TrimSuffix(rest, "'")
	}
	if name, ok := sqliteUniqueColumns[detail]; ok {
		return name
	}
	return detail
}
