package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	lockRetryAttempts = 3
	lockRetryBaseMS   = 100
)

// Store is a directory of one-JSON-file-per-analysis-ID records.
// Grounded on database.Database's directory-of-namespace-files design,
// generalized from one file per namespace to one file per analysis ID,
// with atomic .tmp+rename writes and advisory-locked reads added on top
// since the teacher's Database does plain os.WriteFile.
type Store struct {
	mu  sync.Mutex // serializes Set/Update within this process; flock guards cross-process readers
	dir string
}

// New creates (if needed) dir and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating analysis store dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// NewID mints a fresh analysis ID.
func NewID() string {
	return uuid.NewString()
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get reads the record for id. The second return value is false when no
// such record exists — a NotFound result, not an error (§9 design
// notes: prefer an explicit variant over raising for "not found").
func (s *Store) Get(id string) (Record, bool) {
	data, err := s.readWithLock(s.path(id))
	if err != nil {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Set writes rec atomically as given, stamping CreatedAt/UpdatedAt only
// when the caller left them zero-valued. Update is the operation that
// always stamps UpdatedAt to now (the §4.10 "merge-and-timestamp"
// behavior); Set is a plain write. Returns false on any filesystem
// failure (§7: "write failures return a boolean false"), never an error.
func (s *Store) Set(rec Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	return s.writeAtomic(rec) == nil
}

// Update loads the current record (or starts from a fresh one with
// Status=pending if absent), applies mutate, stamps UpdatedAt, and
// writes it back atomically. Returns the merged record and whether the
// write succeeded.
func (s *Store) Update(id string, mutate func(*Record)) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.Get(id)
	if !ok {
		rec = Record{AnalysisID: id, Status: StatusPending, CreatedAt: time.Now().UTC()}
	}
	mutate(&rec)
	rec.UpdatedAt = time.Now().UTC()

	return rec, s.writeAtomic(rec) == nil
}

// Delete removes the record for id, if present. Idempotent.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	return err == nil || os.IsNotExist(err)
}

// List returns every analysis ID currently persisted, unordered.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing analysis store: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// CleanupOlderThan deletes every record whose UpdatedAt is older than
// hours ago, returning the count removed.
func (s *Store) CleanupOlderThan(hours float64) (int, error) {
	ids, err := s.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour)))
	removed := 0
	for _, id := range ids {
		rec, ok := s.Get(id)
		if !ok {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			if s.Delete(id) {
				removed++
			}
		}
	}
	return removed, nil
}

// writeAtomic marshals rec and writes it via a temp file + rename so
// concurrent readers never observe a partially written file.
func (s *Store) writeAtomic(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.AnalysisID, err)
	}

	finalPath := s.path(rec.AnalysisID)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp file for %s: %w", rec.AnalysisID, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming temp file for %s: %w", rec.AnalysisID, err)
	}
	return nil
}

// readWithLock opens path, takes a shared advisory lock, and reads the
// whole file, retrying with linear backoff on lock/permission conflicts
// up to lockRetryAttempts times (§4.10).
func (s *Store) readWithLock(path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < lockRetryAttempts; attempt++ {
		data, err := tryReadLocked(path)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if os.IsNotExist(err) {
			return nil, err
		}
		time.Sleep(time.Duration(lockRetryBaseMS*(attempt+1)) * time.Millisecond)
	}
	return nil, lastErr
}

func tryReadLocked(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return io.ReadAll(f)
}
