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

var _ repository.QuestionRepository = (*DB)(nil)

// Page size bounds for question listings.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// questionRow is one row of the populated question query.
type questionRow struct {
	ID          string    `db:"id"`
	Content     string    `db:"content"`
	SubjectID   string    `db:"subject_id"`
	SubjectName string    `db:"subject_name"`
	UserID      string    `db:"user_id"`
	Username    string    `db:"username"`
	Avatar      string    `db:"avatar"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r questionRow) toModel() model.Question {
	return model.Question{
		ID:        r.ID,
		Content:   r.Content,
		SubjectID: r.SubjectID,
		UserID:    r.UserID,
		Tags:      []string{},
		Subject:   model.Category{ID: r.SubjectID, Name: r.SubjectName},
		Author:    model.QuestionBy{ID: r.UserID, Username: r.Username, Avatar: r.Avatar},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const selectQuestions = `SELECT q.id, q.content, q.subject_id, c.name AS subject_name,
	q.user_id, u.username, u.avatar, q.created_at, q.updated_at
	FROM questions q
	JOIN categories c ON c.id = q.subject_id
	JOIN users u ON u.id = q.user_id`

// CreateQuestion inserts q and its tags in one transaction.
func (db *DB) CreateQuestion(ctx context.Context, q *model.Question) error {
	q.ID = xid.New().String()
	q.CreatedAt = now()
	q.UpdatedAt = q.CreatedAt

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			db.q(`INSERT INTO questions (id, content, subject_id, user_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			q.ID, q.Content, q.SubjectID, q.UserID, q.CreatedAt, q.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: creating question: %w", err)
		}
		return db.writeTags(ctx, tx, q.ID, q.Tags)
	})
}

func (db *DB) GetQuestionByID(ctx context.Context, id string) (*model.Question, error) {
	var row questionRow
	err := db.conn.GetContext(ctx, &row, db.q(selectQuestions+` WHERE q.id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("question", id)
		}
		return nil, fmt.Errorf("sqlstore: getting question %s: %w", id, err)
	}

	qs := []model.Question{row.toModel()}
	if err := db.attachTags(ctx, qs); err != nil {
		return nil, err
	}
	return &qs[0], nil
}

// ListQuestions returns questions matching f, newest first unless f.Oldest.
func (db *DB) ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, error) {
	var (
		where []string
		args  []any
	)

	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `lower(q.content) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if f.Subject != "" {
		where = append(where, `(q.subject_id = ? OR lower(c.name) = lower(?))`)
		args = append(args, f.Subject, f.Subject)
	}
	if f.Subjects != nil {
		if len(f.Subjects) == 0 {
			return []model.Question{}, nil
		}
		where = append(where, `q.subject_id IN (?)`)
		args = append(args, f.Subjects)
	}
	if f.UserID != "" {
		where = append(where, `q.user_id = ?`)
		args = append(args, f.UserID)
	}
	if tags := dedupe(f.Tags); len(tags) > 0 {
		// every requested tag must be present
		where = append(where, `(SELECT COUNT(*) FROM question_tags t
			WHERE t.question_id = q.id AND t.tag IN (?)) = ?`)
		args = append(args, tags, len(tags))
	}

	query := selectQuestions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Oldest {
		query += " ORDER BY q.created_at ASC, q.id ASC"
	} else {
		query += " ORDER BY q.created_at DESC, q.id DESC"
	}
	query += " LIMIT ? OFFSET ?"

	limit, offset := pageBounds(f.Limit, f.Offset)
	args = append(args, limit, offset)

	query, args, err := db.inQuery(query, args...)
	if err != nil {
		return nil, err
	}

	var rows []questionRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing questions: %w", err)
	}

	qs := make([]model.Question, 0, len(rows))
	for _, r := range rows {
		qs = append(qs, r.toModel())
	}
	if err := db.attachTags(ctx, qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// UpdateQuestion overwrites content, subject and tags.
func (db *DB) UpdateQuestion(ctx context.Context, q *model.Question) error {
	q.UpdatedAt = now()

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			db.q(`UPDATE questions SET content = ?, subject_id = ?, updated_at = ? WHERE id = ?`),
			q.Content, q.SubjectID, q.UpdatedAt, q.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: updating question %s: %w", q.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("question", q.ID)
		}

		if _, err := tx.ExecContext(ctx, db.q(`DELETE FROM question_tags WHERE question_id = ?`), q.ID); err != nil {
			return fmt.Errorf("sqlstore: clearing tags of %s: %w", q.ID, err)
		}
		return db.writeTags(ctx, tx, q.ID, q.Tags)
	})
}

// DeleteQuestion removes a question; its tags go with it (ON DELETE CASCADE).
func (db *DB) DeleteQuestion(ctx context.Context, id string) error {
	return db.execOne(ctx, "question", id, `DELETE FROM questions WHERE id = ?`, id)
}

func (db *DB) writeTags(ctx context.Context, tx *sqlx.Tx, questionID string, tags []string) error {
	for i, tag := range dedupe(tags) {
		if _, err := tx.ExecContext(ctx,
			db.q(`INSERT INTO question_tags (question_id, tag, position) VALUES (?, ?, ?)`),
			questionID, tag, i,
		); err != nil {
			return fmt.Errorf("sqlstore: tagging question %s: %w", questionID, err)
		}
	}
	return nil
}

// attachTags fills Tags on each question with a single query.
func (db *DB) attachTags(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	ids := make([]string, len(qs))
	byID := make(map[string]*model.Question, len(qs))
	for i := range qs {
		ids[i] = qs[i].ID
		byID[qs[i].ID] = &qs[i]
	}

	query, args, err := db.inQuery(
		`SELECT question_id, tag FROM question_tags WHERE question_id IN (?) ORDER BY question_id, position`, ids)
	if err != nil {
		return err
	}

	var rows []struct {
		QuestionID string `db:"question_id"`
		Tag        string `db:"tag"`
	}
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("sqlstore: loading tags: %w", err)
	}
	for _, r := range rows {
		if q, ok := byID[r.QuestionID]; ok {
			q.Tags = append(q.Tags, r.Tag)
		}
	}
	return nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// dedupe drops repeated values, keeping first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
