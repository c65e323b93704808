package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const clipColumns = `id, project_id, video_path, output_path, thumbnail_path, start_time, end_time, duration, title, categories, notes, created_at`

func (r *SQLiteRepository) CreateClip(ctx context.Context, c *Clip) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (project_id, video_path, output_path, thumbnail_path, start_time, end_time, duration, title, categories, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ProjectID, c.VideoPath, c.OutputPath, nullString(c.ThumbnailPath),
		c.StartTime, c.EndTime, c.Duration, c.Title, c.Categories.Encode(), nullString(c.Notes),
		formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) GetClip(ctx context.Context, id int64) (*Clip, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *SQLiteRepository) ListClips(ctx context.Context, projectID int64) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clipColumns+` FROM clips WHERE project_id = ? ORDER BY start_time ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClips(rows)
}

func (r *SQLiteRepository) ListClipsByCategory(ctx context.Context, projectID, categoryID int64) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clipColumns+` FROM clips
		WHERE project_id = ?
		  AND EXISTS (SELECT 1 FROM json_each(clips.categories) WHERE json_each.value = ?)
		ORDER BY start_time ASC, id ASC
	`, projectID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClips(rows)
}

// UpdateClip rewrites the editable fields. Times and duration are fixed at creation.
func (r *SQLiteRepository) UpdateClip(ctx context.Context, c *Clip) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clips SET title = ?, notes = ?, categories = ? WHERE id = ?
	`, c.Title, nullString(c.Notes), c.Categories.Encode(), c.ID)
	if err != nil {
		return fmt.Errorf("update clip: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) DeleteClip(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM clips WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) CountClips(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clips").Scan(&count)
	return count, err
}

func scanClips(rows *sql.Rows) ([]*Clip, error) {
	var clips []*Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func scanClip(s scanner) (*Clip, error) {
	var c Clip
	var thumbnail, notes sql.NullString
	var categories, createdAt string
	err := s.Scan(&c.ID, &c.ProjectID, &c.VideoPath, &c.OutputPath, &thumbnail,
		&c.StartTime, &c.EndTime, &c.Duration, &c.Title, &categories, &notes, &createdAt)
	if err != nil {
		return nil, err
	}
	c.ThumbnailPath = thumbnail.String
	c.Notes = notes.String
	c.CreatedAt = parseTime(createdAt)
	ids, err := DecodeCategoryIDs(categories)
	if err != nil {
		ids = CategoryIDs{}
	}
	c.Categories = ids
	return &c, nil
}

const tagColumns = `id, video_path, timestamp, tag_type, description, player, created_at`

func (r *SQLiteRepository) CreateTag(ctx context.Context, t *Tag) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (video_path, timestamp, tag_type, description, player, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.VideoPath, t.Timestamp, t.TagType, nullString(t.Description), nullString(t.Player), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) ListTagsByVideo(ctx context.Context, videoPath string) ([]*Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tagColumns+` FROM tags WHERE video_path = ? ORDER BY timestamp ASC, id ASC
	`, videoPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

// ListTagsInRange returns tags with from <= timestamp <= to.
func (r *SQLiteRepository) ListTagsInRange(ctx context.Context, videoPath string, from, to float64) ([]*Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tagColumns+` FROM tags
		WHERE video_path = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`, videoPath, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (r *SQLiteRepository) DeleteTag(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return expectAffected(res)
}

func scanTags(rows *sql.Rows) ([]*Tag, error) {
	var tags []*Tag
	for rows.Next() {
		var t Tag
		var description, player sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.VideoPath, &t.Timestamp, &t.TagType, &description, &player, &createdAt); err != nil {
			return nil, err
		}
		t.Description = description.String
		t.Player = player.String
		t.CreatedAt = parseTime(createdAt)
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (r *SQLiteRepository) GetKeyBindings(ctx context.Context) (KeyBindings, error) {
	kb := DefaultKeyBindings()
	err := r.db.QueryRowContext(ctx, `SELECT mark_in, mark_out FROM key_bindings WHERE id = 1`).Scan(&kb.MarkIn, &kb.MarkOut)
	if err == sql.ErrNoRows {
		return DefaultKeyBindings(), nil
	}
	if err != nil {
		return DefaultKeyBindings(), err
	}
	return kb, nil
}

func (r *SQLiteRepository) SetKeyBinding(ctx context.Context, action, key string) (KeyBindings, error) {
	if err := ValidateKeyBinding(action, key); err != nil {
		return KeyBindings{}, err
	}

	var kb KeyBindings
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		kb = DefaultKeyBindings()
		err := tx.QueryRowContext(ctx, `SELECT mark_in, mark_out FROM key_bindings WHERE id = 1`).Scan(&kb.MarkIn, &kb.MarkOut)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		switch action {
		case ActionMarkIn:
			kb.MarkIn = key
		case ActionMarkOut:
			kb.MarkOut = key
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO key_bindings (id, mark_in, mark_out, updated_at) VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET mark_in = excluded.mark_in, mark_out = excluded.mark_out, updated_at = excluded.updated_at
		`, kb.MarkIn, kb.MarkOut, formatTime(time.Now()))
		return err
	})
	if err != nil {
		return KeyBindings{}, fmt.Errorf("set key binding: %w", err)
	}
	return kb, nil
}
