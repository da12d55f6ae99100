// Package text persists stored texts as a JSON document on disk.
package text

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/collection"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

var _ domain.Collection[domain.StoredText] = (*Repo)(nil)

// Repo is an in-memory text collection mirrored to a JSON file.
// Every append rewrites the file through a temp file and rename, so a crash
// never leaves a truncated document behind.
type Repo struct {
	path  string
	items *collection.Memory[domain.StoredText]
}

// Open loads the collection from path. A missing file yields an empty
// collection; an empty path disables persistence.
func Open(path string) (*Repo, error) {
	var stored []domain.StoredText
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &stored); err != nil {
				return nil, fmt.Errorf("parse text store %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read text store %s: %w", path, err)
		}
	}

	r := &Repo{path: path, items: collection.NewMemory(stored...)}
	if path != "" {
		r.items.OnAppend(r.save)
	}
	return r, nil
}

// All implements domain.Collection. Yielded records carry their id.
func (r *Repo) All(ctx context.Context) (iter.Seq2[int64, domain.StoredText], error) {
	seq, err := r.items.All(ctx)
	if err != nil {
		return nil, err
	}
	return func(yield func(int64, domain.StoredText) bool) {
		for id, t := range seq {
			t.ID = id
			if !yield(id, t) {
				return
			}
		}
	}, nil
}

// Append implements domain.Collection.
func (r *Repo) Append(ctx context.Context, items ...domain.StoredText) ([]int64, error) {
	ids, err := r.items.Append(ctx, items...)
	if err != nil {
		return nil, fmt.Errorf("append texts: %w", err)
	}
	return ids, nil
}

// Get returns one stored text.
func (r *Repo) Get(ctx context.Context, id int64) (domain.StoredText, error) {
	t, err := r.items.Get(ctx, id)
	if err != nil {
		return domain.StoredText{}, fmt.Errorf("text %d: %w", id, err)
	}
	t.ID = id
	return t, nil
}

// Len implements domain.Collection.
func (r *Repo) Len(ctx context.Context) (int, error) {
	return r.items.Len(ctx)
}

func (r *Repo) save(all []domain.StoredText) error {
	for i := range all {
		all[i].ID = int64(i)
	}
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshal texts: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create text store dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write text store: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename text store: %w", err)
	}
	return nil
}
