package uniform

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/alphavid/common"
)

// TextureIndex maps stable effect ids to texture array indices. Indices are handed out
// lowest-free-first and stay fixed until the id is evicted.
type TextureIndex struct {
	ids      map[string]int
	free     []int
	next     int
	capacity int
}

// NewTextureIndex creates an index holding at most capacity ids.
//
// Parameters:
//   - capacity: the maximum number of concurrently assigned ids, usually the device's max array layers
//
// Returns:
//   - *TextureIndex: the empty index
func NewTextureIndex(capacity int) *TextureIndex {
	return &TextureIndex{
		ids:      make(map[string]int),
		capacity: capacity,
	}
}

// Assign returns the index for id, assigning a new one when the id is unseen.
//
// Parameters:
//   - id: the stable effect id
//
// Returns:
//   - int: the assigned index
//   - error: ErrResourceExhausted when the capacity is used up
func (t *TextureIndex) Assign(id string) (int, error) {
	if i, ok := t.ids[id]; ok {
		return i, nil
	}
	var i int
	switch {
	case len(t.free) > 0:
		i = t.free[0]
		t.free = t.free[1:]
	case t.next < t.capacity:
		i = t.next
		t.next++
	default:
		return -1, fmt.Errorf("%w: texture index capacity %d reached assigning %q",
			common.ErrResourceExhausted, t.capacity, id)
	}
	t.ids[id] = i
	return i, nil
}

// Lookup returns the index assigned to id.
func (t *TextureIndex) Lookup(id string) (int, bool) {
	if t == nil {
		return -1, false
	}
	i, ok := t.ids[id]
	return i, ok
}

// Evict releases id's index for reuse. Reports whether the id was assigned.
func (t *TextureIndex) Evict(id string) bool {
	i, ok := t.ids[id]
	if !ok {
		return false
	}
	delete(t.ids, id)
	pos, _ := slices.BinarySearch(t.free, i)
	t.free = slices.Insert(t.free, pos, i)
	return true
}

// Len returns the number of assigned ids.
func (t *TextureIndex) Len() int {
	return len(t.ids)
}

// Capacity returns the maximum number of assigned ids.
func (t *TextureIndex) Capacity() int {
	return t.capacity
}
