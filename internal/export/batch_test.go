package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courtcut/courtcut-agent/internal/catalog"
)

func writeClip(t *testing.T, dir string, id int64, cats ...int64) catalog.Clip {
	t.Helper()
	path := filepath.Join(dir, filepath.Base(t.Name())+"_"+string(rune('a'+id))+".mp4")
	require.NoError(t, os.WriteFile(path, []byte("clip data"), 0o644))
	return catalog.Clip{
		ID:         id,
		VideoPath:  "/videos/game.mp4",
		OutputPath: path,
		StartTime:  float64(id * 10),
		EndTime:    float64(id*10 + 4),
		Title:      "Clip",
		Categories: cats,
	}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestBatch_MultiCategoryCopies(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	a := writeClip(t, src, 1, 1)
	b := writeClip(t, src, 2, 1, 2)
	c := writeClip(t, src, 3, 3)

	res, err := NewBatcher(nil).Batch(context.Background(), Request{
		Destination: dest,
		Categories:  []CategoryRef{{ID: 1, Name: "Offense"}, {ID: 2, Name: "Defense"}},
		Clips:       []catalog.Clip{a, b, c},
	})
	require.NoError(t, err)
	require.Equal(t, dest, res.Root)
	require.Equal(t, 3, res.Count)
	require.Len(t, res.Files, 3)
	require.Equal(t, int64(3*len("clip data")), res.Bytes)

	aName := filepath.Base(a.OutputPath)
	bName := filepath.Base(b.OutputPath)
	require.ElementsMatch(t, []string{
		"Offense/" + aName,
		"Offense/" + bName,
		"Defense/" + bName,
	}, listFiles(t, dest))

	for _, f := range res.Files {
		require.NotContains(t, f, filepath.Base(c.OutputPath))
	}
}

func TestBatch_NoEmptyFolders(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	a := writeClip(t, src, 1, 1)
	gone := writeClip(t, src, 2, 2)
	require.NoError(t, os.Remove(gone.OutputPath))

	res, err := NewBatcher(nil).Batch(context.Background(), Request{
		Destination: dest,
		Categories: []CategoryRef{
			{ID: 1, Name: "Offense"},
			{ID: 2, Name: "Defense"},
			{ID: 9, Name: "Unused"},
		},
		Clips: []catalog.Clip{a, gone},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, []int64{2}, res.Skipped)
	require.Equal(t, []string{filepath.Join(dest, "Offense")}, res.Folders)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Offense", entries[0].Name())
}

func TestBatch_DuplicateFolderNames(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	a := writeClip(t, src, 1, 1)
	b := writeClip(t, src, 2, 2)

	res, err := NewBatcher(nil).Batch(context.Background(), Request{
		Destination: dest,
		Categories:  []CategoryRef{{ID: 1, Name: "Drive"}, {ID: 2, Name: "drive"}},
		Clips:       []catalog.Clip{a, b},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dest, "Drive"),
		filepath.Join(dest, "drive (2)"),
	}, res.Folders)
}

func TestBatch_WritesEDL(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	a := writeClip(t, src, 1, 1)

	res, err := NewBatcher(nil).Batch(context.Background(), Request{
		Destination: dest,
		Categories:  []CategoryRef{{ID: 1, Name: "Offense"}},
		Clips:       []catalog.Clip{a},
		WriteEDL:    true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "Offense", "Offense.edl")}, res.EDLFiles)

	data, err := os.ReadFile(res.EDLFiles[0])
	require.NoError(t, err)
	require.Contains(t, string(data), "TITLE: Offense")
	require.Contains(t, string(data), "00:00:10:00 00:00:14:00")
	require.Contains(t, string(data), "* SOURCE FILE:  /videos/game.mp4")
}

func TestBatch_RejectsBadInput(t *testing.T) {
	b := NewBatcher(nil)

	_, err := b.Batch(context.Background(), Request{Destination: filepath.Join(t.TempDir(), "nope"), Categories: []CategoryRef{{ID: 1}}})
	require.ErrorIs(t, err, ErrInvalidDestination)

	_, err = b.Batch(context.Background(), Request{Destination: t.TempDir()})
	require.ErrorIs(t, err, ErrNoCategories)
}

func TestBatch_Cancelled(t *testing.T) {
	src := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBatcher(nil).Batch(ctx, Request{
		Destination: t.TempDir(),
		Categories:  []CategoryRef{{ID: 1, Name: "Offense"}},
		Clips:       []catalog.Clip{writeClip(t, src, 1, 1)},
	})
	require.ErrorIs(t, err, context.Canceled)
}
