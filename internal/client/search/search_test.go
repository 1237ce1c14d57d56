package search

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name     string
	category string
}

func itemText(i item) []string { return []string{i.name, i.category} }

var items = []item{
	{"Laptop", "Electronics"},
	{"Office Chair", "Furniture"},
	{"USB Cable", "Electronics"},
	{"", ""},
	{"Desk Lamp", ""},
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by name", "lap", []string{"Laptop"}},
		{"by category", "furn", []string{"Office Chair"}},
		{"name or category", "electronics", []string{"Laptop", "USB Cable"}},
		{"case insensitive query", "DESK", []string{"Desk Lamp"}},
		{"no match", "printer", []string{}},
		{"no tokenization", "office furniture", []string{}},
		{"inner substring", "b ca", []string{"USB Cable"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(items, tt.query, itemText)
			names := make([]string, 0, len(got))
			for _, g := range got {
				names = append(names, g.name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilter_EmptyQueryIsIdentity(t *testing.T) {
	got := Filter(items, "", itemText)
	assert.Equal(t, items, got)

	got[0].name = "changed"
	assert.Equal(t, "Laptop", items[0].name, "result must not alias the input")

	assert.Empty(t, Filter[item](nil, "", itemText))
	assert.NotNil(t, Filter[item](nil, "x", itemText))
}

func TestFilter_SubsetProperty(t *testing.T) {
	for _, q := range []string{"", "a", "e", "ON", "c", "zz", " ", "lamp"} {
		got := Filter(items, q, itemText)
		require.LessOrEqual(t, len(got), len(items))
		for _, g := range got {
			assert.Contains(t, items, g, "query %q", q)
			assert.True(t,
				strings.Contains(strings.ToLower(g.name), strings.ToLower(q)) ||
					strings.Contains(strings.ToLower(g.category), strings.ToLower(q)),
				"query %q matched %+v", q, g)
		}
	}
}

func TestDebouncer_OnlyLastApplies(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var mu sync.Mutex
	var applied []string
	run := func(q string) func(uint64) {
		return func(seq uint64) {
			if !d.IsCurrent(seq) {
				return
			}
			mu.Lock()
			applied = append(applied, q)
			mu.Unlock()
		}
	}

	d.Trigger(run("q1"))
	d.Trigger(run("q2"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"q2"}, applied)
}

func TestDebouncer_StaleResultDiscarded(t *testing.T) {
	d := NewDebouncer(0)

	// A slow first search keeps working after a second one was issued.
	var staleSeq uint64
	d.Trigger(func(seq uint64) { staleSeq = seq })

	var latest atomic.Value
	d.Trigger(func(seq uint64) {
		if d.IsCurrent(seq) {
			latest.Store("fast")
		}
	})

	if d.IsCurrent(staleSeq) {
		latest.Store("slow")
	}
	assert.Equal(t, "fast", latest.Load())
}

func TestDebouncer_ZeroWaitIsSynchronous(t *testing.T) {
	d := NewDebouncer(0)
	ran := false
	seq := d.Trigger(func(uint64) { ran = true })
	assert.True(t, ran)
	assert.True(t, d.IsCurrent(seq))
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var ran atomic.Bool
	seq := d.Trigger(func(uint64) { ran.Store(true) })
	d.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.False(t, d.IsCurrent(seq))
	assert.Equal(t, DefaultWait, NewDebouncer(-1).Wait())
}
