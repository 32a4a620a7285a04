package static

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/angeloszaimis/termsim-devserver/internal/bootstrap"
	"github.com/angeloszaimis/termsim-devserver/internal/ui"
)

// IndexFile is the page shell every HTML navigation is answered with.
const IndexFile = "index.html"

//go:embed web
var embedded embed.FS

// Shell serves index.html with the root component mounted and every other
// file as is.
type Shell struct {
	logger *slog.Logger
	boot   *bootstrap.Bootstrap
	dir    string
	files  fs.FS
	assets http.Handler
	// readIndex loads index.html; replaced in tests.
	readIndex func(fs.FS, string) ([]byte, error)

	mu     sync.RWMutex
	cached []byte
	// generation is bumped by Invalidate so a read that raced with it is
	// not cached.
	generation uint64
}

// New serves files from dir, or from the embedded default shell when dir is
// empty.
func New(dir string, boot *bootstrap.Bootstrap, logger *slog.Logger) (*Shell, error) {
	var files fs.FS
	if dir == "" {
		sub, err := fs.Sub(embedded, "web")
		if err != nil {
			return nil, err
		}
		files = sub
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, errors.New("static dir " + dir + " is not a directory")
		}
		files = os.DirFS(dir)
	}

	return &Shell{
		logger:    logger,
		boot:      boot,
		dir:       dir,
		files:     files,
		assets:    http.FileServerFS(files),
		readIndex: fs.ReadFile,
	}, nil
}

func (s *Shell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || name == IndexFile {
		s.servePage(w, r)
		return
	}

	if info, err := fs.Stat(s.files, name); err == nil && !info.IsDir() {
		s.assets.ServeHTTP(w, r)
		return
	}

	if isNavigation(r, name) {
		s.servePage(w, r)
		return
	}

	http.NotFound(w, r)
}

// Page returns index.html with the bootstrap applied.
func (s *Shell) Page() ([]byte, error) {
	raw, err := s.shell()
	if err != nil {
		return nil, err
	}

	doc, err := ui.ParseDocument(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	if err := s.boot.Run(doc); err != nil {
		if errors.Is(err, ui.ErrMountPointNotFound) {
			s.logger.Warn("Serving page without the terminal mounted",
				slog.String("mount_point", s.boot.MountPoint),
				slog.String("error", err.Error()))
			return raw, nil
		}
		return nil, err
	}

	var buf bytes.Buffer
	if err := ui.RenderDocument(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Shell) servePage(w http.ResponseWriter, r *http.Request) {
	page, err := s.Page()
	if err != nil {
		s.logger.Error("Failed to build page", slog.String("error", err.Error()))
		http.Error(w, "failed to build page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(page)
	}
}

func (s *Shell) shell() ([]byte, error) {
	s.mu.RLock()
	raw := s.cached
	gen := s.generation
	s.mu.RUnlock()
	if raw != nil {
		return raw, nil
	}

	raw, err := s.readIndex(s.files, IndexFile)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.cached = raw
	}
	s.mu.Unlock()
	return raw, nil
}

// Invalidate drops the cached shell so the next page load rereads it.
func (s *Shell) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.generation++
	s.mu.Unlock()
}

// Watch invalidates the cached shell whenever the static directory changes.
// It returns immediately for the embedded shell and otherwise blocks until
// ctx is done.
func (s *Shell) Watch(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}
	s.logger.Info("Watching static files", slog.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if filepath.Base(event.Name) == IndexFile {
				s.Invalidate()
				s.logger.Info("Page shell changed, reloading", slog.String("file", event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Static watcher error", slog.String("error", err.Error()))
		}
	}
}

// isNavigation reports whether a request for a missing file should get the
// page shell, i.e. it looks like a client-side route rather than an asset.
func isNavigation(r *http.Request, name string) bool {
	if path.Ext(name) != "" {
		return false
	}
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
