// Package catalogue walks CLEO's well-known on-disk tree and classifies
// every file it finds into a typed resource record, seeding the tree with
// the directories the other subsystems expect (spec.md §4.6).
package catalogue

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies one file found under the catalogue root.
type Kind int

const (
	// KindUnknown is never recorded by Scan; files of no recognised
	// kind are skipped rather than recorded.
	KindUnknown Kind = iota
	// KindReplace is a loose file under Replace/... that substitutes a
	// resource by name rather than by archive entry.
	KindReplace
	// KindImageReplace is a loose file under <name>.img/... that
	// substitutes one named entry of the archive <name>.img.
	KindImageReplace
	// KindStartupScript is a .csa compiled script.
	KindStartupScript
	// KindInvokedScript is a .csi compiled script.
	KindInvokedScript
	// KindText is a .fxt key/value translation file.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindReplace:
		return "replace"
	case KindImageReplace:
		return "image-replace"
	case KindStartupScript:
		return "startup-script"
	case KindInvokedScript:
		return "invoked-script"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// instructionFileName is the marker file seeded into each <name>.img
// directory and excluded from classification (spec.md §4.6).
const instructionFileName = "cleo_instructions.txt"

// Resource is one classified file under the catalogue root.
type Resource struct {
	Kind Kind
	// Path is the absolute path to the file on disk.
	Path string
	// Name is the file's base name, used for general replacements and
	// script registry keys (its extension-less stem for scripts).
	Name string
	// Image is the archive base name (e.g. "gta3.img") this resource
	// replaces an entry of; empty unless Kind == KindImageReplace.
	Image string
}

// Catalogue holds the classified view of the CLEO/ tree plus the loaded
// path rewriter and image map can be derived from.
type Catalogue struct {
	mu      sync.RWMutex
	root    string
	logger  *slog.Logger
	resources []Resource

	watcher *fsnotify.Watcher
	onChange func()
}

// New returns a Catalogue rooted at root. It does not scan until Scan is
// called.
func New(root string, logger *slog.Logger) *Catalogue {
	return &Catalogue{root: root, logger: logger}
}

// Root returns the catalogue's root directory.
func (c *Catalogue) Root() string { return c.root }

// EnsureLayout creates the root, the Replace folder, and one <name>.img
// folder (seeded with an instruction marker) per .img archive found
// alongside execDir, the host executable's directory (spec.md §4.6).
func (c *Catalogue) EnsureLayout(execDir string) error {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return fmt.Errorf("catalogue: create root %s: %w", c.root, err)
	}
	replaceDir := filepath.Join(c.root, "Replace")
	if err := os.MkdirAll(replaceDir, 0o755); err != nil {
		return fmt.Errorf("catalogue: create Replace dir: %w", err)
	}

	entries, err := os.ReadDir(execDir)
	if err != nil {
		c.logger.Warn("cannot scan executable directory for archives", "dir", execDir, "error", err)
		return nil
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".img") {
			continue
		}
		imgDir := filepath.Join(c.root, e.Name())
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			c.logger.Warn("cannot create image replacement dir", "dir", imgDir, "error", err)
			continue
		}
		marker := filepath.Join(imgDir, instructionFileName)
		if _, err := os.Stat(marker); os.IsNotExist(err) {
			_ = os.WriteFile(marker, []byte(instructionText), 0o644)
		}
	}
	return nil
}

const instructionText = "Place files here to replace entries in this archive by name.\n"

// Scan walks the catalogue root and replaces the current resource set with
// a freshly classified one.
func (c *Catalogue) Scan() error {
	var found []Resource

	err := filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("catalogue walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil {
			return nil
		}
		if res, ok := classify(c.root, rel, path); ok {
			found = append(found, res)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("catalogue: walk %s: %w", c.root, err)
	}

	c.mu.Lock()
	c.resources = found
	c.mu.Unlock()

	c.logger.Info("catalogue scan complete", "resources", len(found))
	return nil
}

// classify maps one path (relative to root) to a Resource, per spec.md §4.6.
func classify(root, rel, abs string) (Resource, bool) {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	name := filepath.Base(abs)

	if segments[0] == "Replace" && len(segments) > 1 {
		return Resource{Kind: KindReplace, Path: abs, Name: name}, true
	}

	if len(segments) > 1 && strings.EqualFold(filepath.Ext(segments[0]), ".img") {
		if name == instructionFileName {
			return Resource{}, false
		}
		return Resource{Kind: KindImageReplace, Path: abs, Name: name, Image: segments[0]}, true
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csa":
		return Resource{Kind: KindStartupScript, Path: abs, Name: strings.TrimSuffix(name, filepath.Ext(name))}, true
	case ".csi":
		return Resource{Kind: KindInvokedScript, Path: abs, Name: strings.TrimSuffix(name, filepath.Ext(name))}, true
	case ".fxt":
		return Resource{Kind: KindText, Path: abs, Name: name}, true
	default:
		return Resource{}, false
	}
}

// Resources returns a snapshot of the currently classified resources.
func (c *Catalogue) Resources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// ByKind returns only the resources of the given kind.
func (c *Catalogue) ByKind(k Kind) []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Resource
	for _, r := range c.resources {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// WatchForChanges starts an fsnotify watch on the root tree and invokes
// onChange after each rescan. Every create, remove, rename, or write event
// triggers its own full rescan; events are not debounced. The watcher runs
// until Close is called.
func (c *Catalogue) WatchForChanges(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalogue: create watcher: %w", err)
	}
	c.onChange = onChange

	err = filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("catalogue: add watches: %w", err)
	}

	c.watcher = w
	go c.watchLoop()
	return nil
}

func (c *Catalogue) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if err := c.Scan(); err != nil {
				c.logger.Warn("catalogue rescan failed", "error", err)
				continue
			}
			if c.onChange != nil {
				c.onChange()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("catalogue watcher error", "error", err)
		}
	}
}

// Close stops the live watch, if one was started.
func (c *Catalogue) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}
