// Package localcache keeps the last known ledger snapshot and the pair
// settings on local disk so the app keeps working when the store is down.
//
// One JSON file per document, human-readable. Writes go to a temp file that
// is renamed over the target.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"duoaccount/internal/core"
)

const settingsFileName = "settings.json"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type Cache struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string { return c.dir }

// SaveExpenses stores the snapshot of duoID. An empty snapshot is ignored so
// a failed or partial fetch never wipes the last good copy.
func (c *Cache) SaveExpenses(duoID string, es []core.Expense) error {
	if len(es) == 0 {
		return nil
	}
	return c.SaveJSON(expensesFileName(duoID), es)
}

// SavePending stores imported records of duoID that have not been pushed to
// the store yet. They live apart from the fetched snapshot so a refresh never
// overwrites them.
func (c *Cache) SavePending(duoID string, es []core.Expense) error {
	if es == nil {
		es = []core.Expense{}
	}
	return c.SaveJSON(pendingFileName(duoID), es)
}

// LoadPending returns the pending import of duoID. It reports false when
// there is none.
func (c *Cache) LoadPending(duoID string) ([]core.Expense, bool, error) {
	var es []core.Expense
	found, err := c.LoadJSON(pendingFileName(duoID), &es)
	if err != nil || !found {
		return nil, false, err
	}
	if es == nil {
		es = []core.Expense{}
	}
	return es, true, nil
}

// ClearPending drops the pending import of duoID, if any.
func (c *Cache) ClearPending(duoID string) error {
	return c.Remove(pendingFileName(duoID))
}

// LoadExpenses returns the cached snapshot, or an empty one when nothing was
// cached yet.
func (c *Cache) LoadExpenses(duoID string) ([]core.Expense, error) {
	var es []core.Expense
	found, err := c.LoadJSON(expensesFileName(duoID), &es)
	if err != nil {
		return nil, err
	}
	if !found || es == nil {
		return []core.Expense{}, nil
	}
	return es, nil
}

func (c *Cache) SaveSettings(v any) error {
	return c.SaveJSON(settingsFileName, v)
}

func (c *Cache) LoadSettings(v any) (bool, error) {
	return c.LoadJSON(settingsFileName, v)
}

// SaveJSON writes v to name inside the cache directory.
func (c *Cache) SaveJSON(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// LoadJSON decodes name into v. It reports false when the file does not exist.
func (c *Cache) LoadJSON(name string, v any) (bool, error) {
	c.mu.Lock()
	b, err := os.ReadFile(filepath.Join(c.dir, name))
	c.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("json unmarshal %s: %w", name, err)
	}
	return true, nil
}

// Remove deletes name from the cache directory. A missing file is not an
// error.
func (c *Cache) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func expensesFileName(duoID string) string {
	return "expenses-" + unsafeName.ReplaceAllString(duoID, "_") + ".json"
}

func pendingFileName(duoID string) string {
	return "imported-" + unsafeName.ReplaceAllString(duoID, "_") + ".json"
}
