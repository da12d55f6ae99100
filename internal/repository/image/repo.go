// Package image stores images and their encodings in an embedded badger database.
package image

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

const (
	keyPrefix         = "img:"
	idSequenceKey     = "seq:img"
	sequenceBandwidth = 100
)

var _ domain.Collection[domain.StoredImage] = (*Repo)(nil)

// Repo is a badger-backed image collection. Ids come from a badger sequence
// and keys sort by id, so iteration follows insertion order.
type Repo struct {
	db    *badger.DB
	idSeq *badger.Sequence
}

// Open opens (or creates) the store at dir. With inMemory set, dir is ignored.
func Open(dir string, inMemory bool, logger *zap.Logger) (*Repo, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create image dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = &badgerLogger{logger: logger.Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte(idSequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("image id sequence: %w", err)
	}

	return &Repo{db: db, idSeq: seq}, nil
}

// Close releases the id sequence and closes the database.
func (r *Repo) Close() error {
	seqErr := r.idSeq.Release()
	if err := r.db.Close(); err != nil {
		return err
	}
	return seqErr
}

// Append stores images with fresh ids. Writes go through a badger
// WriteBatch, which commits in as many transactions as the batch needs.
func (r *Repo) Append(ctx context.Context, items ...domain.StoredImage) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	ids := make([]int64, len(items))
	for i := range items {
		id, err := r.nextID()
		if err != nil {
			return nil, fmt.Errorf("append images: %w", err)
		}
		rec := items[i]
		rec.ID = id

		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal image: %w", err)
		}
		if err := wb.Set(makeKey(id), value); err != nil {
			return nil, fmt.Errorf("append images: %w", err)
		}
		ids[i] = id
	}

	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("append images: %w", err)
	}
	return ids, nil
}

func (r *Repo) nextID() (int64, error) {
	id, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// sequences start at 0; keep 0 free as "unset"
	if id == 0 {
		if id, err = r.idSeq.Next(); err != nil {
			return 0, err
		}
	}
	return int64(id), nil
}

// Get returns one image by id.
func (r *Repo) Get(_ context.Context, id int64) (domain.StoredImage, error) {
	var rec domain.StoredImage
	err := r.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.StoredImage{}, fmt.Errorf("image %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("get image %d: %w", id, err)
	}
	return rec, nil
}

// All reads every image in one read transaction and iterates the result.
func (r *Repo) All(ctx context.Context) (iter.Seq2[int64, domain.StoredImage], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.StoredImage
	err := r.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec domain.StoredImage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan images: %w", err)
	}

	return func(yield func(int64, domain.StoredImage) bool) {
		for _, rec := range records {
			if !yield(rec.ID, rec) {
				return
			}
		}
	}, nil
}

// Len counts stored images without reading values.
func (r *Repo) Len(_ context.Context) (int, error) {
	n := 0
	err := r.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func makeKey(id int64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], uint64(id))
	return key
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.logger.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.logger.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...any)    { l.logger.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any)   { l.logger.Debugf(msg, args...) }
