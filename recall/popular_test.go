package recall

import (
	"context"
	"testing"

	"github.com/moviekit/moviekit/catalog"
	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/store"
)

func popularFixture() map[string]*core.Movie {
	return map[string]*core.Movie{
		"d1": {ID: "d1", Genre: "Drama", Rating: 3.0},
		"d2": {ID: "d2", Genre: "Drama", Rating: 4.5},
		"a1": {ID: "a1", Genre: "Action", Rating: 5.0},
	}
}

func TestPopular_GlobalOrder(t *testing.T) {
	pop := &Popular{Movies: popularFixture()}

	items, err := pop.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	want := []string{"a1", "d2", "d1"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("items[%d] = %s, want %s", i, items[i].ID, id)
		}
	}
}

func TestPopular_GenreFromProfile(t *testing.T) {
	profile := core.NewUserProfile("u1")
	profile.PreferredGenre = "Drama"
	pop := &Popular{Movies: popularFixture()}

	items, err := pop.Recall(context.Background(), &core.RecommendContext{UserID: "u1", User: profile})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 drama movies, got %d", len(items))
	}
	if items[0].ID != "d2" || items[1].ID != "d1" {
		t.Errorf("order = [%s %s], want [d2 d1]", items[0].ID, items[1].ID)
	}
}

// 限定类型下没有任何影片时退回全局热门。
func TestPopular_UnknownGenreFallsBackToGlobal(t *testing.T) {
	pop := &Popular{Movies: popularFixture(), Genre: "Horror"}

	items, err := pop.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected global fallback with 3 items, got %d", len(items))
	}
	if items[0].ID != "a1" {
		t.Errorf("top item = %s, want a1", items[0].ID)
	}
}

// 配置 Store 时走榜单快路径，榜单里已下架的影片被过滤。
func TestPopular_StoreFastPath(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	key := catalog.PopularKey("")
	if err := kv.ZAdd(ctx, key, 5.0, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := kv.ZAdd(ctx, key, 4.5, "d2"); err != nil {
		t.Fatal(err)
	}
	if err := kv.ZAdd(ctx, key, 4.0, "gone"); err != nil {
		t.Fatal(err)
	}

	pop := &Popular{Movies: popularFixture(), Store: kv, TopN: 10}
	items, err := pop.Recall(ctx, &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items from store ranking, got %d", len(items))
	}
	if items[0].ID != "a1" || items[1].ID != "d2" {
		t.Errorf("order = [%s %s], want [a1 d2]", items[0].ID, items[1].ID)
	}
	for _, it := range items {
		if it.ID == "gone" {
			t.Error("delisted movie leaked from store ranking")
		}
	}
}

func TestPopular_TopN(t *testing.T) {
	pop := &Popular{Movies: popularFixture(), TopN: 1}

	items, err := pop.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}
