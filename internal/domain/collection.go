package domain

import (
	"context"
	"iter"
)

// NoID marks an item that Append did not store because its key already existed.
const NoID int64 = -1

// Collection is a finite, ordered, restartable sequence of stored records.
//
// All returns a snapshot taken at call time; appends that happen while it is
// being ranged over are not observed. Append returns one id per input item:
// the assigned id, or NoID if the item conflicted with an existing key.
type Collection[T any] interface {
	All(ctx context.Context) (iter.Seq2[int64, T], error)
	Append(ctx context.Context, items ...T) ([]int64, error)
	Len(ctx context.Context) (int, error)
}
