package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	TouchProject(ctx context.Context, id int64, at time.Time) error
	DeleteProject(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context, projectID int64) ([]*Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id int64) error
	ReplaceCategories(ctx context.Context, projectID int64, blueprints []PresetCategory) ([]*Category, error)

	CreateClip(ctx context.Context, c *Clip) error
	GetClip(ctx context.Context, id int64) (*Clip, error)
	ListClips(ctx context.Context, projectID int64) ([]*Clip, error)
	ListClipsByCategory(ctx context.Context, projectID, categoryID int64) ([]*Clip, error)
	UpdateClip(ctx context.Context, c *Clip) error
	DeleteClip(ctx context.Context, id int64) error
	CountClips(ctx context.Context) (int, error)

	CreateTag(ctx context.Context, t *Tag) error
	ListTagsByVideo(ctx context.Context, videoPath string) ([]*Tag, error)
	ListTagsInRange(ctx context.Context, videoPath string, from, to float64) ([]*Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	SavePreset(ctx context.Context, p *Preset) error
	GetPreset(ctx context.Context, name string) (*Preset, error)
	ListPresetNames(ctx context.Context) ([]string, error)
	DeletePreset(ctx context.Context, name string) error

	GetKeyBindings(ctx context.Context) (KeyBindings, error)
	SetKeyBinding(ctx context.Context, action, key string) (KeyBindings, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	ResetAll(ctx context.Context) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const projectColumns = `id, name, video_path, video_name, description, created_at, last_opened`

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (name, video_path, video_name, description, created_at, last_opened)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.VideoPath, p.VideoName, nullString(p.Description), formatTime(p.CreatedAt), formatTime(p.LastOpened))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY last_opened DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ? WHERE id = ?
	`, p.Name, nullString(p.Description), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) TouchProject(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET last_opened = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return expectAffected(res)
}

// DeleteProject removes the project; categories and clips go with it through ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// ResetAll wipes every user table. The app_config table (auth token) is kept so the
// running UI stays authenticated.
func (r *SQLiteRepository) ResetAll(ctx context.Context) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"clips", "categories", "projects", "tags", "category_presets", "key_bindings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('clips', 'categories', 'projects', 'tags')`)
		return err
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*Project, error) {
	var p Project
	var description sql.NullString
	var createdAt, lastOpened string
	if err := s.Scan(&p.ID, &p.Name, &p.VideoPath, &p.VideoName, &description, &createdAt, &lastOpened); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.CreatedAt = parseTime(createdAt)
	p.LastOpened = parseTime(lastOpened)
	return &p, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
