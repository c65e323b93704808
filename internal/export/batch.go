package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/logging"
)

type Batcher struct {
	logger *slog.Logger
}

func NewBatcher(logger *slog.Logger) *Batcher {
	return &Batcher{logger: logging.WithComponent(logging.OrDiscard(logger), "export")}
}

type group struct {
	ref    CategoryRef
	folder string
	clips  []catalog.Clip
}

// Batch copies every clip that carries a requested category into a folder
// named after that category. A clip with several requested categories is
// copied once per folder. Clips whose output file is gone are skipped, and a
// folder is only created when at least one file will land in it.
func (b *Batcher) Batch(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateDestination(req.Destination); err != nil {
		return nil, err
	}
	if len(req.Categories) == 0 {
		return nil, ErrNoCategories
	}

	groups := groupClips(req.Categories, req.Clips)

	res := &Result{Root: req.Destination, Files: []string{}, Folders: []string{}}
	skipped := make(map[int64]bool)

	for _, g := range groups {
		present := make([]catalog.Clip, 0, len(g.clips))
		for _, clip := range g.clips {
			if fileExists(clip.OutputPath) {
				present = append(present, clip)
				continue
			}
			if !skipped[clip.ID] {
				skipped[clip.ID] = true
				res.Skipped = append(res.Skipped, clip.ID)
				b.logger.Warn("clip file missing, skipping",
					"clip_id", clip.ID,
					"path", logging.SanitizePath(clip.OutputPath),
				)
			}
		}
		if len(present) == 0 {
			continue
		}

		dir := filepath.Join(req.Destination, g.folder)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("create folder %q: %w", g.folder, err)
		}
		res.Folders = append(res.Folders, dir)

		for _, clip := range present {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			dst := filepath.Join(dir, filepath.Base(clip.OutputPath))
			n, err := copyFile(clip.OutputPath, dst)
			if err != nil {
				return res, fmt.Errorf("copy clip %d: %w", clip.ID, err)
			}
			res.Files = append(res.Files, dst)
			res.Bytes += n
		}

		if req.WriteEDL {
			path, err := writeEDL(dir, g, present, req.FrameRate)
			if err != nil {
				return res, err
			}
			res.EDLFiles = append(res.EDLFiles, path)
		}
	}

	res.Count = len(res.Files)
	b.logger.Info("export complete",
		"root", logging.SanitizePath(res.Root),
		"files", res.Count,
		"folders", len(res.Folders),
		"size", humanize.IBytes(uint64(res.Bytes)),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// groupClips associates clips with requested categories, preserving the
// requested category order and the snapshot clip order. Requested ids that
// repeat are merged and folder names are made unique.
func groupClips(refs []CategoryRef, clips []catalog.Clip) []*group {
	byID := make(map[int64]*group, len(refs))
	ordered := make([]*group, 0, len(refs))
	usedFolders := make(map[string]bool)

	for _, ref := range refs {
		if _, ok := byID[ref.ID]; ok {
			continue
		}
		g := &group{ref: ref, folder: uniqueFolder(FolderName(ref), usedFolders)}
		byID[ref.ID] = g
		ordered = append(ordered, g)
	}

	for _, clip := range clips {
		for _, id := range catalog.Dedupe(clip.Categories) {
			if g, ok := byID[id]; ok {
				g.clips = append(g.clips, clip)
			}
		}
	}
	return ordered
}

func uniqueFolder(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s (%d)", name, i)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func writeEDL(dir string, g *group, clips []catalog.Clip, frameRate float64) (string, error) {
	entries := make([]EDLClip, 0, len(clips))
	for _, clip := range clips {
		entries = append(entries, EDLClip{
			Name:      clip.Title,
			MediaPath: clip.VideoPath,
			Start:     clip.StartTime,
			End:       clip.EndTime,
		})
	}
	path := filepath.Join(dir, g.folder+".edl")
	if err := os.WriteFile(path, []byte(GenerateEDL(entries, g.ref.Name, frameRate)), 0o644); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}
