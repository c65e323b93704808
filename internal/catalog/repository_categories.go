package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const categoryColumns = `id, project_id, name, color, description, parent_id, created_at`

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *Category) error {
	return insertCategory(ctx, r.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCategory(ctx context.Context, db execer, c *Category) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO categories (project_id, name, color, description, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ProjectID, c.Name, c.Color, nullString(c.Description), nullInt64(c.ParentID), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListCategories returns the project's categories in creation order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, projectID int64) ([]*Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE project_id = ? ORDER BY id ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, color = ?, description = ?, parent_id = ? WHERE id = ?
	`, c.Name, c.Color, nullString(c.Description), nullInt64(c.ParentID), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectAffected(res)
}

// DeleteCategory removes a category and its children. Clips keep their stored ids.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectAffected(res)
}

// ReplaceCategories drops every category of the project and recreates them from
// preset blueprints inside one transaction.
func (r *SQLiteRepository) ReplaceCategories(ctx context.Context, projectID int64, blueprints []PresetCategory) ([]*Category, error) {
	plan := PlanPreset(blueprints)
	created := make([]*Category, 0, len(plan))

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		now := time.Now()
		for _, pc := range plan {
			c := &Category{
				ProjectID:   projectID,
				Name:        pc.Name,
				Color:       pc.Color,
				Description: pc.Description,
				CreatedAt:   now,
			}
			if pc.Parent >= 0 {
				parentID := created[pc.Parent].ID
				c.ParentID = &parentID
			}
			if err := insertCategory(ctx, tx, c); err != nil {
				return err
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *SQLiteRepository) SavePreset(ctx context.Context, p *Preset) error {
	data, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO category_presets (name, categories, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET categories = excluded.categories, updated_at = excluded.updated_at
	`, p.Name, string(data), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save preset: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPreset(ctx context.Context, name string) (*Preset, error) {
	var p Preset
	var data, createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT name, categories, created_at, updated_at FROM category_presets WHERE name = ?
	`, name).Scan(&p.Name, &data, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &p.Categories); err != nil {
		return nil, fmt.Errorf("decode preset %q: %w", name, err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListPresetNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM category_presets ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SQLiteRepository) DeletePreset(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM category_presets WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	return expectAffected(res)
}

func scanCategory(s scanner) (*Category, error) {
	var c Category
	var description sql.NullString
	var parentID sql.NullInt64
	var createdAt string
	if err := s.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Color, &description, &parentID, &createdAt); err != nil {
		return nil, err
	}
	c.Description = description.String
	if parentID.Valid {
		pid := parentID.Int64
		c.ParentID = &pid
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
