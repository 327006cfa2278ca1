// Package session caches parsed files for the duration of one pass and
// runs path operations against them.
//
// Every operation goes through WithSession or WithSessionForWrite. Both
// bind the $target variable to the root of the file and, when the target
// names a resource path, $resource to the nodes it matches:
//
//	m := session.NewManager(osfs.New("/"))
//	err := m.WithSessionForWrite(session.Target{
//		File:     "/etc/hosts",
//		Lens:     "Hosts.lns",
//		Resource: "$target/*[canonical = $name]",
//		Args:     []path.Arg{path.Bind("name", "localhost")},
//	}, func(s *tree.Store, prefix string) error {
//		return s.Set("$resource/ipaddr", "127.0.0.1")
//	})
//
// A Manager is not safe for concurrent use.
package session

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	goerrors "github.com/agilira/go-errors"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/hercules-team/augeasproviders/internal/format"
	"github.com/hercules-team/augeasproviders/internal/logging"
	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Variables bound in every session.
const (
	TargetVar   = "target"
	ResourceVar = "resource"

	// Prefix is the path prefix passed to session callbacks.
	Prefix = "$" + TargetVar
)

// Target identifies the file a session works on.
type Target struct {
	// File is the path of the file on the manager's filesystem.
	File string
	// Lens names the lens; empty selects it by file name.
	Lens string
	// Resource is an optional path bound to $resource.
	Resource string
	// Args are bound while evaluating Resource.
	Args []path.Arg
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithSaveMode sets the save mode of every store the manager opens.
func WithSaveMode(mode tree.SaveMode) Option {
	return func(m *Manager) {
		m.mode = mode
	}
}

// WithDiff makes the manager write a unified diff of every change to w
// before saving.
func WithDiff(w io.Writer) Option {
	return func(m *Manager) {
		m.diff = w
	}
}

// Manager owns the parsed stores of one pass, one per file.
type Manager struct {
	fs     billy.Filesystem
	logger *slog.Logger
	mode   tree.SaveMode
	diff   io.Writer
	pass   string
	stores map[string]*tree.Store
}

// NewManager returns a manager reading and writing files on fs.
func NewManager(fs billy.Filesystem, opts ...Option) *Manager {
	m := &Manager{
		fs:     fs,
		pass:   uuid.NewString(),
		stores: make(map[string]*tree.Store),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.For(m.logger, logging.SubsystemSession).With("pass", m.pass)
	return m
}

// Pass returns the identifier of the manager's pass.
func (m *Manager) Pass() string {
	return m.pass
}

// Filesystem returns the filesystem the manager works on.
func (m *Manager) Filesystem() billy.Filesystem {
	return m.fs
}

// WithSession runs fn against the store of t.File. Changes stay in memory.
func (m *Manager) WithSession(t Target, fn func(s *tree.Store, prefix string) error) error {
	s, err := m.open(t)
	if err != nil {
		return err
	}
	if err := fn(s, Prefix); err != nil {
		return err
	}
	return nil
}

// WithSessionForWrite runs fn and saves the file once it succeeds. On
// any error the store is dropped so the next session rereads the file.
func (m *Manager) WithSessionForWrite(t Target, fn func(s *tree.Store, prefix string) error) error {
	s, err := m.open(t)
	if err != nil {
		return err
	}
	if err := fn(s, Prefix); err != nil {
		m.Evict(t.File)
		return err
	}
	if err := m.save(s); err != nil {
		m.Evict(t.File)
		return err
	}
	return nil
}

// Save writes the cached store of file if it has changes.
func (m *Manager) Save(file string) error {
	s, ok := m.stores[filepath.Clean(file)]
	if !ok {
		return nil
	}
	if err := m.save(s); err != nil {
		m.Evict(file)
		return err
	}
	return nil
}

func (m *Manager) save(s *tree.Store) error {
	if !s.Dirty() {
		return nil
	}
	if m.diff != nil {
		d, err := s.Diff()
		if err != nil {
			return err
		}
		if d != "" {
			if _, err := io.WriteString(m.diff, d); err != nil {
				return fmt.Errorf("failed to write diff: %w", err)
			}
		}
	}
	if err := s.Save(); err != nil {
		m.logger.Error("save failed", "file", s.File(), "error", err)
		return err
	}
	m.logger.Info("saved file", "file", s.File(), "mode", m.mode.String())
	return nil
}

// open returns the cached store for t.File, parsing it on first use,
// and binds the session variables.
func (m *Manager) open(t Target) (*tree.Store, error) {
	key := filepath.Clean(t.File)
	lens, err := m.lens(t)
	if err != nil {
		return nil, err
	}

	s, ok := m.stores[key]
	if ok && s.Lens().Name() != lens.Name() {
		return nil, goerrors.New(tree.ErrCodeInvalidOperation,
			fmt.Sprintf("%s is already open with %s, not %s", key, s.Lens().Name(), lens.Name())).
			WithContext("file", key)
	}
	if !ok {
		s, err = tree.Open(m.fs, key, lens)
		if err != nil {
			m.logger.Error("failed to open file", "file", key, "lens", lens.Name(), "error", err)
			return nil, err
		}
		s.SetSaveMode(m.mode)
		m.stores[key] = s
		m.logger.Debug("opened file", "file", key, "lens", lens.Name())
	}

	s.SetVar(TargetVar, s.Root())
	if t.Resource == "" {
		s.SetVar(ResourceVar)
		return s, nil
	}
	if _, err := s.DefVar(ResourceVar, t.Resource, t.Args...); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) lens(t Target) (format.Handler, error) {
	var (
		h   format.Handler
		err error
	)
	if t.Lens != "" {
		h, err = format.Lookup(t.Lens)
	} else {
		h, err = format.ForFile(t.File)
	}
	if err != nil {
		return nil, goerrors.Wrap(err, tree.ErrCodeInvalidOperation, err.Error()).
			WithContext("file", t.File)
	}
	return h, nil
}

// Evict drops the cached store of file.
func (m *Manager) Evict(file string) {
	key := filepath.Clean(file)
	if _, ok := m.stores[key]; ok {
		delete(m.stores, key)
		m.logger.Debug("evicted file", "file", key)
	}
}

// Files returns the files with a cached store, sorted.
func (m *Manager) Files() []string {
	files := make([]string, 0, len(m.stores))
	for f := range m.stores {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Close drops every cached store. Unsaved changes are lost.
func (m *Manager) Close() {
	for f, s := range m.stores {
		if s.Dirty() {
			m.logger.Warn("discarding unsaved changes", "file", f)
		}
	}
	m.stores = make(map[string]*tree.Store)
}
