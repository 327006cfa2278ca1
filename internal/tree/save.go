package tree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	goerrors "github.com/agilira/go-errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pmezard/go-difflib/difflib"
)

// SaveMode selects what Save does with changed content.
type SaveMode int

const (
	// SaveOverwrite replaces the file.
	SaveOverwrite SaveMode = iota
	// SaveBackup copies the original to <file>.augsave, then replaces the file.
	SaveBackup
	// SaveNewFile writes <file>.augnew and leaves the file alone.
	SaveNewFile
	// SaveNoop writes nothing.
	SaveNoop
)

// Suffixes used by SaveBackup and SaveNewFile.
const (
	BackupSuffix  = ".augsave"
	NewFileSuffix = ".augnew"
)

var saveModeNames = map[SaveMode]string{
	SaveOverwrite: "overwrite",
	SaveBackup:    "backup",
	SaveNewFile:   "newfile",
	SaveNoop:      "noop",
}

func (m SaveMode) String() string {
	if name, ok := saveModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SaveMode(%d)", int(m))
}

// ParseSaveMode parses a save mode name. The empty string means overwrite.
func ParseSaveMode(s string) (SaveMode, error) {
	if s == "" {
		return SaveOverwrite, nil
	}
	for m, name := range saveModeNames {
		if name == s {
			return m, nil
		}
	}
	return SaveOverwrite, fmt.Errorf("unknown save mode %q (want overwrite, backup, newfile or noop)", s)
}

// SetSaveMode sets the mode used by Save.
func (s *Store) SetSaveMode(m SaveMode) {
	s.mode = m
}

// Text serializes the tree without writing it.
func (s *Store) Text() ([]byte, error) {
	data, err := s.lens.Put(s.root)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrCodeWrite, fmt.Sprintf("failed to serialize %s with %s: %v", s.file, s.lens.Name(), err)).
			WithContext("file", s.file).
			WithContext("lens", s.lens.Name())
	}
	return data, nil
}

// Diff returns a unified diff between the file as loaded and the
// current tree. It is empty when nothing changed.
func (s *Store) Diff() (string, error) {
	data, err := s.Text()
	if err != nil {
		return "", err
	}
	if bytes.Equal(data, s.original) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(s.original)),
		B:        difflib.SplitLines(string(data)),
		FromFile: s.file,
		ToFile:   s.file,
		Context:  3,
	})
}

// Save writes the tree back to its file. Nothing is written when the
// serialized content equals the file content. The file is replaced
// atomically; on error it is left untouched.
func (s *Store) Save() error {
	if s.fs == nil {
		return invalid("store for " + s.file + " is not backed by a filesystem")
	}
	data, err := s.Text()
	if err != nil {
		return err
	}
	if bytes.Equal(data, s.original) {
		s.dirty = false
		return nil
	}

	perm := os.FileMode(0o644)
	if fi, err := s.fs.Stat(s.file); err == nil {
		perm = fi.Mode().Perm()
	}

	switch s.mode {
	case SaveNoop:
		return nil
	case SaveNewFile:
		if err := writeAtomic(s.fs, s.file+NewFileSuffix, data, perm); err != nil {
			return s.writeError(err)
		}
		s.dirty = false
		return nil
	case SaveBackup:
		if s.original != nil {
			if err := util.WriteFile(s.fs, s.file+BackupSuffix, s.original, perm); err != nil {
				return s.writeError(err)
			}
		}
	}

	if err := writeAtomic(s.fs, s.file, data, perm); err != nil {
		return s.writeError(err)
	}
	s.original = data
	s.dirty = false
	return nil
}

func (s *Store) writeError(err error) error {
	return goerrors.Wrap(err, ErrCodeWrite, fmt.Sprintf("failed to write %s: %v", s.file, err)).
		WithContext("file", s.file)
}

// writeAtomic writes data to a temp file next to name and renames it
// over name.
func writeAtomic(fs billy.Filesystem, name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := fs.TempFile(dir, "."+filepath.Base(name)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if ch, ok := fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, perm)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
