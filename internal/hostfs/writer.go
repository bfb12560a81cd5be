package hostfs

import (
	"bytes"
	"errors"
	"os"

	"github.com/rsh2prasad/authcfgd/internal/logger"
)

// Writer commits file contents atomically and journals the bytes it
// replaces, so a commit sequence that fails midway can be unwound.
// A Writer is scoped to one reconciliation pass; it is not safe for
// concurrent use.
type Writer struct {
	journal []journalEntry
	written int
}

type journalEntry struct {
	path    string
	prev    []byte
	existed bool
	perm    os.FileMode
}

func NewWriter() *Writer {
	return &Writer{}
}

// Commit writes content to path via a temp file and atomic rename.
// If the file already holds exactly content, nothing is touched (mtime
// included) and Commit reports changed=false.
func (w *Writer) Commit(path string, content []byte, perm os.FileMode) (bool, error) {
	prev, err := ReadFile(path)
	existed := true
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
		existed = false
		prev = nil
	}
	if existed && bytes.Equal(prev, content) {
		return false, nil
	}
	if existed {
		if st, err := os.Stat(path); err == nil {
			perm = st.Mode().Perm()
		}
	}
	if err := WriteFileAtomic(path, content, perm); err != nil {
		return false, err
	}
	w.journal = append(w.journal, journalEntry{path: path, prev: prev, existed: existed, perm: perm})
	w.written++
	return true, nil
}

// Remove deletes path if it exists, journaling its previous content.
func (w *Writer) Remove(path string) (bool, error) {
	prev, err := ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	w.journal = append(w.journal, journalEntry{path: path, prev: prev, existed: true, perm: st.Mode().Perm()})
	w.written++
	return true, nil
}

// Written reports how many files this Writer has changed so far.
func (w *Writer) Written() int {
	return w.written
}

// Rollback restores every file this Writer changed, newest first. It is
// best effort: restore failures are logged and the first error returned.
func (w *Writer) Rollback() error {
	var firstErr error
	for i := len(w.journal) - 1; i >= 0; i-- {
		e := w.journal[i]
		var err error
		if e.existed {
			err = WriteFileAtomic(e.path, e.prev, e.perm)
		} else {
			err = os.Remove(e.path)
		}
		if err != nil {
			logger.Error("rollback of %s failed: %v", e.path, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	w.journal = nil
	return firstErr
}
