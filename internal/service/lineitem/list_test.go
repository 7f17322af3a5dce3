package lineitem

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"orderdesk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var b1 = domain.CatalogItem{ID: "B1", Title: "Gospel of John", Category: "book", Code: "GJ-01"}

func TestList_AddMergesDuplicates(t *testing.T) {
	l := New()
	l.Add(b1, 2)
	l.Add(b1, 3)

	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].StartCount)
	assert.Equal(t, "B1", items[0].Item.ID)

	l.Remove("B1")
	assert.Equal(t, 0, l.Len())
}

func TestList_AddMovesMergedEntryToEnd(t *testing.T) {
	l := New()
	b2 := domain.CatalogItem{ID: "B2", Title: "Psalms", Category: "book"}
	l.Add(b1, 1)
	l.Add(b2, 1)
	l.Add(b1, 1)

	items := l.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "B2", items[0].Item.ID)
	assert.Equal(t, "B1", items[1].Item.ID)
	assert.Equal(t, 2, items[1].StartCount)
}

func TestList_RemoveMissingIsNoop(t *testing.T) {
	l := New()
	l.Add(b1, 1)

	calls := 0
	l.OnChange(func([]domain.SelectedItemQuantity) { calls++ })
	l.Remove("nope")

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 0, calls)
}

func TestList_UpdateQuantity(t *testing.T) {
	l := New()
	l.Add(b1, 1)

	assert.True(t, l.UpdateQuantity("B1", 7))
	assert.Equal(t, 7, l.Items()[0].StartCount)

	assert.False(t, l.UpdateQuantity("missing", 3))
	assert.Equal(t, 1, l.Len())
}

func TestList_OnChangeSeesEveryMutation(t *testing.T) {
	l := New()
	var lens []int
	l.OnChange(func(items []domain.SelectedItemQuantity) { lens = append(lens, len(items)) })

	l.Add(b1, 1)
	l.UpdateQuantity("B1", 4)
	l.Remove("B1")
	l.Reset()

	assert.Equal(t, []int{1, 1, 0, 0}, lens)
}

func TestList_ItemsIsACopy(t *testing.T) {
	l := New()
	l.Add(b1, 1)
	l.Items()[0].StartCount = 99
	assert.Equal(t, 1, l.Items()[0].StartCount)
}

func TestList_ItemsCopiesCounts(t *testing.T) {
	l := New()
	l.Add(b1, 1)
	end, net := 4, 3
	l.mu.Lock()
	l.items[0].EndCount = &end
	l.items[0].NetCount = &net
	l.mu.Unlock()

	var seen []domain.SelectedItemQuantity
	l.OnChange(func(items []domain.SelectedItemQuantity) { seen = items })

	got := l.Items()
	*got[0].EndCount = 0
	*got[0].NetCount = 0
	l.Add(b1, 1)
	require.Len(t, seen, 1)
	*seen[0].EndCount = -1

	again := l.Items()
	require.NotNil(t, again[0].EndCount)
	assert.Equal(t, 4, *again[0].EndCount)
	assert.Equal(t, 3, *again[0].NetCount)
	assert.Equal(t, 2, again[0].StartCount)
}

func TestList_UniqueIDsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := New()
	ids := []string{"A", "B", "C", "D"}

	for step := 0; step < 500; step++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(3) {
		case 0:
			l.Add(domain.CatalogItem{ID: id}, rng.Intn(5)+1)
		case 1:
			l.Remove(id)
		case 2:
			l.UpdateQuantity(id, rng.Intn(10))
		}

		seen := map[string]bool{}
		for _, it := range l.Items() {
			require.False(t, seen[it.Item.ID], "duplicate id %s at step %d", it.Item.ID, step)
			seen[it.Item.ID] = true
		}
	}
}

func TestList_ConcurrentAdds(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Add(domain.CatalogItem{ID: fmt.Sprintf("B%d", i%4)}, 1)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, it := range l.Items() {
		total += it.StartCount
	}
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 20, total)
}
