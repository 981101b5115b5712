package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, role, verified, credential_account,
	external_identity_id, gender, class_grade, school_name, age, bio, avatar,
	notification_preferences, badge_data, last_login, created_at, updated_at`

// CreateUser inserts u. Email and username uniqueness is left to the
// ux_users_* indexes; a violation comes back as ErrDuplicateEmail or
// ErrDuplicateUsername.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	u.ID = xid.New().String()
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	if u.Avatar == "" {
		u.Avatar = model.DefaultAvatar
	}
	if u.PreferredCategories == nil {
		u.PreferredCategories = []string{}
	}

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :username, :email, :password_hash, :role, :verified, :credential_account,
		 	:external_identity_id, :gender, :class_grade, :school_name, :age, :bio, :avatar,
		 	:notification_preferences, :badge_data, :last_login, :created_at, :updated_at)`,
		u,
	)
	if err != nil {
		if dup := translateUnique(err); dup != err {
			return dup
		}
		return fmt.Errorf("sqlstore: inserting user %q: %w", u.Username, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id = ?", id, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "lower(email) = lower(?)", strings.TrimSpace(email), email)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, "lower(username) = lower(?)", strings.TrimSpace(username), username)
}

// getUser loads one user matching where, plus their preferred category ids.
func (db *DB) getUser(ctx context.Context, where string, arg any, label string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u,
		db.q(`SELECT `+userColumns+` FROM users WHERE `+where),
		arg,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", label, err)
	}

	u.PreferredCategories, err = db.preferredCategoryIDs(ctx, db.conn, u.ID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) preferredCategoryIDs(ctx context.Context, qx sqlx.QueryerContext, userID string) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, qx, &ids,
		db.q(`SELECT category_id FROM user_categories WHERE user_id = ? ORDER BY created_at, category_id`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing preferences for %s: %w", userID, err)
	}
	return ids, nil
}

// UpdateProfile sets the non-nil fields of upd and returns the stored user.
func (db *DB) UpdateProfile(ctx context.Context, id string, upd repository.UserUpdate) (*model.User, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}

	if upd.Username != nil {
		set("username", *upd.Username)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.Verified != nil {
		set("verified", *upd.Verified)
	}
	if upd.Gender != nil {
		set("gender", string(*upd.Gender))
	}
	if upd.ClassGrade != nil {
		set("class_grade", *upd.ClassGrade)
	}
	if upd.SchoolName != nil {
		set("school_name", *upd.SchoolName)
	}
	if upd.Age != nil {
		set("age", *upd.Age)
	}
	if upd.Bio != nil {
		set("bio", *upd.Bio)
	}
	if upd.Avatar != nil {
		set("avatar", *upd.Avatar)
	}
	if upd.Notifications != nil {
		set("notification_preferences", *upd.Notifications)
	}
	if len(sets) == 0 {
		return db.GetUserByID(ctx, id)
	}
	set("updated_at", now())
	args = append(args, id)

	err := db.execOne(ctx, "user", id,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if dup := translateUnique(err); dup != err {
			return nil, dup
		}
		return nil, err
	}
	return db.GetUserByID(ctx, id)
}

// SetPasswordHash stores an already-hashed password. Hashing is the
// caller's job; this never sees plaintext.
func (db *DB) SetPasswordHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return fmt.Errorf("sqlstore: refusing to store an empty password hash")
	}
	return db.execOne(ctx, "user", id,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND credential_account = ?`,
		hash, now(), id, false)
}

func (db *DB) SetVerified(ctx context.Context, id string, verified bool) error {
	return db.execOne(ctx, "user", id,
		`UPDATE users SET verified = ?, updated_at = ? WHERE id = ?`, verified, now(), id)
}

func (db *DB) SetRole(ctx context.Context, id string, role model.Role) error {
	return db.execOne(ctx, "user", id,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, string(role), now(), id)
}

func (db *DB) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return db.execOne(ctx, "user", id,
		`UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
}

// TogglePreferredCategory deletes the (user, category) pair if present and
// inserts it otherwise, inside one transaction. When two toggles race and
// both insert, the second insert is a no-op and both report preferred.
func (db *DB) TogglePreferredCategory(ctx context.Context, userID, categoryID string) (bool, error) {
	var preferred bool
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			db.q(`DELETE FROM user_categories WHERE user_id = ? AND category_id = ?`),
			userID, categoryID)
		if err != nil {
			return fmt.Errorf("sqlstore: removing preference: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("sqlstore: checking rows affected: %w", err)
		} else if n > 0 {
			preferred = false
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			db.q(`INSERT INTO user_categories (user_id, category_id, created_at) VALUES (?, ?, ?)
				ON CONFLICT (user_id, category_id) DO NOTHING`),
			userID, categoryID, now()); err != nil {
			return fmt.Errorf("sqlstore: adding preference: %w", err)
		}
		preferred = true
		return nil
	})
	return preferred, err
}

// PreferredCategories returns the user's preferred categories with names,
// in the order they were added.
func (db *DB) PreferredCategories(ctx context.Context, userID string) ([]model.Category, error) {
	cats := []model.Category{}
	err := db.conn.SelectContext(ctx, &cats,
		db.q(`SELECT c.id, c.name
		 FROM user_categories uc
		 JOIN categories c ON c.id = uc.category_id
		 WHERE uc.user_id = ?
		 ORDER BY uc.created_at, c.id`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing preferred categories for %s: %w", userID, err)
	}
	return cats, nil
}

// execOne runs a write that must touch exactly one row; zero rows is NotFound.
func (db *DB) execOne(ctx context.Context, resource, id, query string, args ...any) error {
	res, err := db.conn.ExecContext(ctx, db.q(query), args...)
	if err != nil {
		return fmt.Errorf("sqlstore: updating %s %s: %w", resource, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
