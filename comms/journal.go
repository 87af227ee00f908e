package comms

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/asdine/storm/v3"
)

// Entry is one dispatched (or rejected) command.
type Entry struct {
	ID      int       `storm:"increment" json:"id"`
	Session string    `storm:"index" json:"session"`
	Source  string    `json:"source"`
	Command string    `json:"command"`
	Value   int       `json:"value,omitempty"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

// Journal is an audit log of commands. It is never used to restore actuator
// state.
type Journal struct {
	lock   sync.RWMutex
	db     *storm.DB
	closed bool
}

var ErrJournalClosed = errors.New("journal closed")

func OpenJournal(filename string) (*Journal, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("unable to create journal dir: %w", err)
			}
		}
	}

	db, err := storm.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal: %w", err)
	}

	if err := db.Init(&Entry{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to init journal: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Record(e *Entry) error {
	j.lock.RLock()
	defer j.lock.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}

	if e.At.IsZero() {
		e.At = time.Now()
	}
	return j.db.Save(e)
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	if j.closed {
		return nil, ErrJournalClosed
	}

	var entries []Entry
	err := j.db.All(&entries, storm.Limit(limit), storm.Reverse())
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return nil, err
	}
	return entries, nil
}

// Session returns every entry recorded for one connection, oldest first.
func (j *Journal) Session(id string) ([]Entry, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	if j.closed {
		return nil, ErrJournalClosed
	}

	var entries []Entry
	err := j.db.Find("Session", id, &entries)
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return nil, err
	}
	return entries, nil
}

// Close waits for in-flight writes. Later calls return ErrJournalClosed.
func (j *Journal) Close() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
