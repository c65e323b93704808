// Package playback serves encoded clips and thumbnails to the UI player.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/courtcut/courtcut-agent/internal/logging"
)

// ErrOutsideRoots is returned for paths that do not live under a media root.
var ErrOutsideRoots = errors.New("path outside media roots")

type MediaServer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error
}

// Server streams files from a fixed set of root directories with byte-range
// support so the player can seek without downloading the whole clip.
type Server struct {
	roots  []string
	logger *slog.Logger
}

func NewServer(logger *slog.Logger, roots ...string) *Server {
	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		if root == "" {
			continue
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		cleaned = append(cleaned, filepath.Clean(root))
	}
	return &Server{roots: cleaned, logger: logging.WithComponent(logging.OrDiscard(logger), "playback")}
}

// Allowed reports whether filePath resolves inside one of the roots.
func (s *Server) Allowed(filePath string) bool {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ServeFile writes the file (or the requested range) to w. Missing files get a
// 404 and forbidden paths a 403; only I/O failures after headers are decided
// are returned.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	if !s.Allowed(filePath) {
		s.logger.Warn("refusing to serve file outside media roots", "path", logging.SanitizePath(filePath))
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat media file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	size := stat.Size()
	etag := entityTag(stat.ModTime(), size)

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(filePath))
	h.Set("ETag", etag)
	h.Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", "private, max-age=0, must-revalidate")

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	rangeHeader := r.Header.Get("Range")
	if ifRange := r.Header.Get("If-Range"); ifRange != "" && ifRange != etag {
		rangeHeader = ""
	}

	rng, err := ParseRange(rangeHeader, size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		rng = nil
	}

	if rng == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		_, err = io.Copy(w, file)
		return ignoreClientGone(err)
	}

	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	h.Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := file.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek media file: %w", err)
	}
	_, err = io.CopyN(w, file, rng.Length())
	return ignoreClientGone(err)
}

func entityTag(mod time.Time, size int64) string {
	return fmt.Sprintf(`"%x-%x"`, mod.UnixNano(), size)
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ignoreClientGone drops write errors caused by the player aborting a request,
// which happens on every seek.
func ignoreClientGone(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset") {
		return nil
	}
	return err
}
