package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/courtcut/courtcut-agent/internal/logging"
)

// CatalogService is the store surface used by the API, the clip pipeline and the tray.
type CatalogService interface {
	CreateProject(ctx context.Context, name, videoPath, description string) (*Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context) []*Project
	UpdateProject(ctx context.Context, id int64, name, description string) (*Project, error)
	OpenProject(ctx context.Context, id int64) (*Project, error)
	DeleteProject(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context, projectID int64) []*Category
	CategoryTree(ctx context.Context, projectID int64) []*Category
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateClip(ctx context.Context, c *Clip) error
	GetClip(ctx context.Context, id int64) (*Clip, error)
	ListClips(ctx context.Context, projectID int64) []*Clip
	ListClipsByCategory(ctx context.Context, projectID, categoryID int64) []*Clip
	UpdateClip(ctx context.Context, id int64, title, notes *string, categories []int64) (*Clip, error)
	DeleteClip(ctx context.Context, id int64) error
	CountClips(ctx context.Context) int

	CreateTag(ctx context.Context, t *Tag) error
	ListTags(ctx context.Context, videoPath string) []*Tag
	ListTagsInRange(ctx context.Context, videoPath string, from, to float64) []*Tag
	DeleteTag(ctx context.Context, id int64) error

	SavePreset(ctx context.Context, name string, blueprints []PresetCategory) (*Preset, error)
	SavePresetFromProject(ctx context.Context, projectID int64, name string) (*Preset, error)
	LoadPreset(ctx context.Context, projectID int64, name string) ([]*Category, error)
	GetPreset(ctx context.Context, name string) (*Preset, error)
	ListPresetNames(ctx context.Context) []string
	DeletePreset(ctx context.Context, name string) error

	KeyBindings(ctx context.Context) KeyBindings
	SetKeyBinding(ctx context.Context, action, key string) (KeyBindings, error)

	ResetAll(ctx context.Context) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logging.OrDiscard(logger).With("component", "catalog"),
		now:    time.Now,
	}
}

func (s *Service) CreateProject(ctx context.Context, name, videoPath, description string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(videoPath) == "" {
		return nil, fmt.Errorf("%w: video path is required", ErrInvalidInput)
	}
	absPath, err := filepath.Abs(videoPath)
	if err != nil {
		return nil, fmt.Errorf("invalid video path: %w", err)
	}

	now := s.now()
	p := &Project{
		Name:        name,
		VideoPath:   absPath,
		VideoName:   filepath.Base(absPath),
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		LastOpened:  now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", p.ID, "video", logging.SanitizePath(absPath))
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id int64) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context) []*Project {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		s.logger.Error("failed to list projects", "error", err)
		return []*Project{}
	}
	return nonNil(projects)
}

func (s *Service) UpdateProject(ctx context.Context, id int64, name, description string) (*Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	p.Description = strings.TrimSpace(description)
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenProject bumps last_opened and returns the refreshed project.
func (s *Service) OpenProject(ctx context.Context, id int64) (*Project, error) {
	if err := s.repo.TouchProject(ctx, id, s.now()); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, id)
}

func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	if _, err := s.GetProject(ctx, c.ProjectID); err != nil {
		return err
	}
	if err := s.checkPlacement(ctx, c); err != nil {
		return err
	}
	c.CreatedAt = s.now()
	return s.repo.CreateCategory(ctx, c)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, projectID int64) []*Category {
	categories, err := s.repo.ListCategories(ctx, projectID)
	if err != nil {
		s.logger.Error("failed to list categories", "project_id", projectID, "error", err)
		return []*Category{}
	}
	return nonNil(categories)
}

// CategoryTree returns the top-level categories of a project, each with its children
// in creation order. Children is never nil.
func (s *Service) CategoryTree(ctx context.Context, projectID int64) []*Category {
	return BuildTree(s.ListCategories(ctx, projectID))
}

// BuildTree groups a flat category list into top-level entries with their children.
// Entries whose parent is missing from the list are dropped.
func BuildTree(flat []*Category) []*Category {
	tops := make([]*Category, 0, len(flat))
	byID := make(map[int64]*Category, len(flat))
	for _, c := range flat {
		if c.IsTopLevel() {
			c.Children = []*Category{}
			tops = append(tops, c)
			byID[c.ID] = c
		}
	}
	for _, c := range flat {
		if c.IsTopLevel() {
			continue
		}
		if parent, ok := byID[*c.ParentID]; ok {
			parent.Children = append(parent.Children, c)
		}
	}
	return tops
}

func (s *Service) UpdateCategory(ctx context.Context, c *Category) error {
	existing, err := s.GetCategory(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	c.ProjectID = existing.ProjectID
	if c.ParentID != nil {
		if *c.ParentID == c.ID {
			return ErrInvalidParent
		}
		for _, other := range s.ListCategories(ctx, c.ProjectID) {
			if other.ParentID != nil && *other.ParentID == c.ID {
				return fmt.Errorf("%w: category has children", ErrInvalidParent)
			}
		}
	}
	if err := s.checkPlacement(ctx, c); err != nil {
		return err
	}
	return s.repo.UpdateCategory(ctx, c)
}

// checkPlacement enforces the two-level hierarchy and unique sibling names.
func (s *Service) checkPlacement(ctx context.Context, c *Category) error {
	if c.ParentID != nil {
		parent, err := s.repo.GetCategory(ctx, *c.ParentID)
		if err != nil {
			return err
		}
		if parent == nil || parent.ProjectID != c.ProjectID || !parent.IsTopLevel() {
			return ErrInvalidParent
		}
	}
	siblings, err := s.repo.ListCategories(ctx, c.ProjectID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == c.ID || !sameParent(other.ParentID, c.ParentID) {
			continue
		}
		if strings.EqualFold(other.Name, c.Name) {
			return fmt.Errorf("%w: category %q", ErrDuplicate, c.Name)
		}
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

// CreateClip stores a clip produced by the pipeline. Duration is derived from the times.
func (s *Service) CreateClip(ctx context.Context, c *Clip) error {
	if c.StartTime < 0 || c.EndTime <= c.StartTime {
		return fmt.Errorf("%w: clip range %.3f-%.3f", ErrInvalidInput, c.StartTime, c.EndTime)
	}
	c.Duration = c.EndTime - c.StartTime
	c.Categories = Dedupe(c.Categories)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if err := s.repo.CreateClip(ctx, c); err != nil {
		return err
	}
	s.logger.Info("clip saved", "clip_id", c.ID, "project_id", c.ProjectID, "duration", c.Duration)
	return nil
}

func (s *Service) GetClip(ctx context.Context, id int64) (*Clip, error) {
	c, err := s.repo.GetClip(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	s.dropDangling(ctx, c.ProjectID, []*Clip{c})
	return c, nil
}

func (s *Service) ListClips(ctx context.Context, projectID int64) []*Clip {
	clips, err := s.repo.ListClips(ctx, projectID)
	if err != nil {
		s.logger.Error("failed to list clips", "project_id", projectID, "error", err)
		return []*Clip{}
	}
	return s.dropDangling(ctx, projectID, nonNil(clips))
}

func (s *Service) ListClipsByCategory(ctx context.Context, projectID, categoryID int64) []*Clip {
	clips, err := s.repo.ListClipsByCategory(ctx, projectID, categoryID)
	if err != nil {
		s.logger.Error("failed to list clips by category", "project_id", projectID, "category_id", categoryID, "error", err)
		return []*Clip{}
	}
	return s.dropDangling(ctx, projectID, nonNil(clips))
}

// dropDangling removes category ids that no longer exist in the project.
func (s *Service) dropDangling(ctx context.Context, projectID int64, clips []*Clip) []*Clip {
	if len(clips) == 0 {
		return clips
	}
	categories, err := s.repo.ListCategories(ctx, projectID)
	if err != nil {
		s.logger.Warn("failed to load categories for clip filtering", "project_id", projectID, "error", err)
		return clips
	}
	valid := make(map[int64]bool, len(categories))
	for _, c := range categories {
		valid[c.ID] = true
	}
	for _, clip := range clips {
		kept := make(CategoryIDs, 0, len(clip.Categories))
		for _, id := range clip.Categories {
			if valid[id] {
				kept = append(kept, id)
			}
		}
		clip.Categories = kept
	}
	return clips
}

// UpdateClip applies the non-nil fields. A nil categories slice leaves the set unchanged.
func (s *Service) UpdateClip(ctx context.Context, id int64, title, notes *string, categories []int64) (*Clip, error) {
	c, err := s.GetClip(ctx, id)
	if err != nil {
		return nil, err
	}
	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		c.Title = t
	}
	if notes != nil {
		c.Notes = strings.TrimSpace(*notes)
	}
	if categories != nil {
		if len(categories) == 0 {
			return nil, fmt.Errorf("%w: at least one category is required", ErrInvalidInput)
		}
		c.Categories = Dedupe(categories)
	}
	if err := s.repo.UpdateClip(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteClip removes the row, then the output and thumbnail files. File removal
// failures are logged and do not fail the delete.
func (s *Service) DeleteClip(ctx context.Context, id int64) error {
	c, err := s.GetClip(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteClip(ctx, id); err != nil {
		return err
	}
	for _, path := range []string{c.OutputPath, c.ThumbnailPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove clip file", "clip_id", id, "path", logging.SanitizePath(path), "error", err)
		}
	}
	s.logger.Info("clip deleted", "clip_id", id)
	return nil
}

func (s *Service) CountClips(ctx context.Context) int {
	n, err := s.repo.CountClips(ctx)
	if err != nil {
		s.logger.Error("failed to count clips", "error", err)
		return 0
	}
	return n
}

func (s *Service) CreateTag(ctx context.Context, t *Tag) error {
	t.TagType = strings.TrimSpace(t.TagType)
	if t.VideoPath == "" || t.TagType == "" {
		return fmt.Errorf("%w: video path and tag type are required", ErrInvalidInput)
	}
	if t.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must not be negative", ErrInvalidInput)
	}
	t.CreatedAt = s.now()
	return s.repo.CreateTag(ctx, t)
}

func (s *Service) ListTags(ctx context.Context, videoPath string) []*Tag {
	tags, err := s.repo.ListTagsByVideo(ctx, videoPath)
	if err != nil {
		s.logger.Error("failed to list tags", "error", err)
		return []*Tag{}
	}
	return nonNil(tags)
}

func (s *Service) ListTagsInRange(ctx context.Context, videoPath string, from, to float64) []*Tag {
	tags, err := s.repo.ListTagsInRange(ctx, videoPath, from, to)
	if err != nil {
		s.logger.Error("failed to list tags in range", "from", from, "to", to, "error", err)
		return []*Tag{}
	}
	return nonNil(tags)
}

func (s *Service) DeleteTag(ctx context.Context, id int64) error {
	return s.repo.DeleteTag(ctx, id)
}

func (s *Service) SavePreset(ctx context.Context, name string, blueprints []PresetCategory) (*Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: preset name is required", ErrInvalidInput)
	}
	if blueprints == nil {
		blueprints = []PresetCategory{}
	}
	p := &Preset{Name: name, Categories: blueprints}
	if existing, err := s.repo.GetPreset(ctx, name); err == nil && existing != nil {
		p.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.SavePreset(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("preset saved", "preset", name, "categories", len(blueprints))
	return p, nil
}

// SavePresetFromProject snapshots the project's category tree under name.
func (s *Service) SavePresetFromProject(ctx context.Context, projectID int64, name string) (*Preset, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.SavePreset(ctx, name, FlattenCategories(s.CategoryTree(ctx, projectID)))
}

// LoadPreset replaces the project's categories with the preset and returns the new tree.
func (s *Service) LoadPreset(ctx context.Context, projectID int64, name string) ([]*Category, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	p, err := s.GetPreset(ctx, name)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.ReplaceCategories(ctx, projectID, p.Categories)
	if err != nil {
		return nil, err
	}
	s.logger.Info("preset loaded", "preset", name, "project_id", projectID, "categories", len(created))
	return BuildTree(created), nil
}

func (s *Service) GetPreset(ctx context.Context, name string) (*Preset, error) {
	p, err := s.repo.GetPreset(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListPresetNames(ctx context.Context) []string {
	names, err := s.repo.ListPresetNames(ctx)
	if err != nil {
		s.logger.Error("failed to list presets", "error", err)
		return []string{}
	}
	return nonNil(names)
}

func (s *Service) DeletePreset(ctx context.Context, name string) error {
	return s.repo.DeletePreset(ctx, name)
}

func (s *Service) KeyBindings(ctx context.Context) KeyBindings {
	kb, err := s.repo.GetKeyBindings(ctx)
	if err != nil {
		s.logger.Error("failed to load key bindings", "error", err)
	}
	return kb
}

func (s *Service) SetKeyBinding(ctx context.Context, action, key string) (KeyBindings, error) {
	kb, err := s.repo.SetKeyBinding(ctx, action, key)
	if err != nil {
		return KeyBindings{}, err
	}
	s.logger.Info("key binding updated", "action", action, "key", key)
	return kb, nil
}

func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.repo.ResetAll(ctx); err != nil {
		return err
	}
	s.logger.Warn("all data reset")
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
