package kv_test

import (
	"context"
	"testing"

	"github.com/ovis-hpc/maestro/internal/kv"
	"github.com/stretchr/testify/assert"
)

func sampleTree() map[string]interface{} {
	return map[string]interface{}{
		"hosts": map[string]interface{}{
			"node1": map[string]interface{}{
				"name": "node1",
				"port": "10001",
			},
			"node2": map[string]interface{}{
				"name": "node2",
				"port": "10002",
			},
		},
		"aggregators": map[string]interface{}{
			"L1": []interface{}{
				map[string]interface{}{"name": "agg-1", "state": "ready"},
				map[string]interface{}{"name": "agg-2", "state": "stopped"},
			},
		},
	}
}

func TestWalkReflectRoundTrip(t *testing.T) {
	ast := assert.New(t)
	flat := kv.Walk("/cluster", sampleTree())
	node := kv.Reflect("/cluster", flat)
	got := node.ToInterface()
	ast.Equal(sampleTree(), got)
}

func TestWalkSkipsEmptyLeaves(t *testing.T) {
	ast := assert.New(t)
	tree := map[string]interface{}{
		"a": "",
		"b": false,
		"c": "value",
	}
	flat := kv.Walk("/p", tree)
	_, hasA := flat["/p/a"]
	_, hasB := flat["/p/b"]
	ast.False(hasA)
	ast.False(hasB)
	ast.Equal("value", flat["/p/c"])
}

func TestWalkSequenceOrdering(t *testing.T) {
	ast := assert.New(t)
	tree := map[string]interface{}{
		"list": []interface{}{"a", "b", "c"},
	}
	flat := kv.Walk("/p", tree)
	ast.Equal("a", flat["/p/list/000000"])
	ast.Equal("b", flat["/p/list/000001"])
	ast.Equal("c", flat["/p/list/000002"])
}

func TestSaveConfigCommitSentinel(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	store := kv.NewMemStore()

	ast.Nil(kv.SaveConfig(ctx, store, "cluster1", sampleTree(), 100.5))

	all, err := store.List(ctx, "/cluster1")
	ast.Nil(err)
	_, ok := all["/cluster1/last_updated"]
	ast.True(ok)
	ast.Equal("100.5", all["/cluster1/last_updated"])

	tree, err := kv.LoadConfig(ctx, store, "cluster1")
	ast.Nil(err)
	// last_updated is a top-level leaf, not part of the entity tree.
	delete(tree, "last_updated")
	ast.Equal(sampleTree(), tree)
}

func TestSaveConfigIdempotent(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	store := kv.NewMemStore()

	ast.Nil(kv.SaveConfig(ctx, store, "c", sampleTree(), 1))
	first, _ := store.List(ctx, "/c")
	ast.Nil(kv.SaveConfig(ctx, store, "c", sampleTree(), 2))
	second, _ := store.List(ctx, "/c")

	delete(first, "/c/last_updated")
	delete(second, "/c/last_updated")
	ast.Equal(first, second)
}

func TestSaveConfigDeletesStaleKeys(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	store := kv.NewMemStore()

	ast.Nil(kv.SaveConfig(ctx, store, "c", map[string]interface{}{"hosts": map[string]interface{}{"a": "1", "b": "2"}}, 1))
	ast.Nil(kv.SaveConfig(ctx, store, "c", map[string]interface{}{"hosts": map[string]interface{}{"a": "1"}}, 2))

	all, _ := store.List(ctx, "/c")
	_, hasB := all["/c/hosts/b"]
	ast.False(hasB)
}

func TestMemStoreWatch(t *testing.T) {
	ast := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := kv.NewMemStore()

	events, _ := store.Watch(ctx, "/c/last_updated")
	ast.Nil(store.Put(ctx, "/c/last_updated", "1"))

	select {
	case ev := <-events:
		ast.Equal("/c/last_updated", ev.Key)
	default:
		t.Fatal("expected a watch event")
	}
}
