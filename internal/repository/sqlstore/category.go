package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/model"
	"github.com/sakif/eduqa/internal/repository"
)

var _ repository.CategoryRepository = (*DB)(nil)

func (db *DB) CreateCategory(ctx context.Context, c *model.Category) error {
	c.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		db.q(`INSERT INTO categories (id, name) VALUES (?, ?)`),
		c.ID, c.Name,
	)
	if err != nil {
		if dup := translateUnique(err); dup != err {
			return dup
		}
		return fmt.Errorf("sqlstore: creating category %q: %w", c.Name, err)
	}
	return nil
}

func (db *DB) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	err := db.conn.GetContext(ctx, &c, db.q(`SELECT id, name FROM categories WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlstore: getting category %s: %w", id, err)
	}
	return &c, nil
}

// ListCategories returns every category ordered by name.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	cats := []model.Category{}
	if err := db.conn.SelectContext(ctx, &cats, `SELECT id, name FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("sqlstore: listing categories: %w", err)
	}
	return cats, nil
}
