package engine

import (
	"context"
	"math"
	"testing"

	"github.com/moviekit/moviekit/catalog"
	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/store"
)

const eps = 1e-9

// 经典两用户目录：u1 与 u2 在 m1/m2 上有重叠评分，m3 只有 u2 评过。
func newTwoUserEngine() *Engine {
	c := catalog.NewMemoryCatalog(
		[]*core.User{
			{ID: "u1", Name: "Alice", PreferredGenre: "Drama"},
			{ID: "u2", Name: "Bob"},
		},
		[]*core.Movie{
			{ID: "m1", Title: "One", Genre: "Drama"},
			{ID: "m2", Title: "Two", Genre: "Drama"},
			{ID: "m3", Title: "Three", Genre: "Action"},
		},
		[]*core.Rating{
			{UserID: "u1", MovieID: "m1", Value: 5},
			{UserID: "u1", MovieID: "m2", Value: 3},
			{UserID: "u2", MovieID: "m1", Value: 5},
			{UserID: "u2", MovieID: "m2", Value: 4},
			{UserID: "u2", MovieID: "m3", Value: 5},
		},
	)
	return New(c)
}

func TestEngine_RecommendCollaborative_NeighborPrediction(t *testing.T) {
	e := newTwoUserEngine()

	items, err := e.RecommendCollaborative(context.Background(), "u1", 1, 10)
	if err != nil {
		t.Fatalf("RecommendCollaborative() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != "m3" {
		t.Fatalf("expected [m3], got %v", items)
	}
	// u2 是 u1 唯一的邻居，m3 的预测分等于 u2 对 m3 的评分
	if math.Abs(items[0].Score-5) > eps {
		t.Errorf("predicted score = %v, want 5", items[0].Score)
	}
}

// 数据缺失不是异常：不存在的用户得到空结果。
func TestEngine_RecommendCollaborative_UnknownUser(t *testing.T) {
	e := newTwoUserEngine()

	items, err := e.RecommendCollaborative(context.Background(), "ghost", 0, 0)
	if err != nil {
		t.Fatalf("RecommendCollaborative() error = %v, want nil", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want empty", items)
	}
}

func TestEngine_UserSimilarity(t *testing.T) {
	e := newTwoUserEngine()
	ctx := context.Background()

	sim, err := e.UserSimilarity(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("UserSimilarity() error = %v", err)
	}
	if sim <= 0 || sim > 1+eps {
		t.Errorf("similarity = %v, want in (0,1]", sim)
	}

	// 不存在的用户按数据缺失处理：相似度 0，无错误
	sim, err = e.UserSimilarity(ctx, "u1", "ghost")
	if err != nil || sim != 0 {
		t.Errorf("UserSimilarity(unknown) = %v, %v, want 0, nil", sim, err)
	}
}

func TestEngine_MovieSimilarity(t *testing.T) {
	c := catalog.NewMemoryCatalog(
		[]*core.User{{ID: "u1"}, {ID: "u2"}},
		[]*core.Movie{
			{ID: "m1", Genre: "Drama"},
			{ID: "m2", Genre: "Action"},
			{ID: "m3", Genre: "Drama"},
		},
		[]*core.Rating{
			// 三部影片聚合评分都是 4.0
			{UserID: "u1", MovieID: "m1", Value: 4},
			{UserID: "u1", MovieID: "m2", Value: 4},
			{UserID: "u1", MovieID: "m3", Value: 4},
		},
	)
	e := New(c)
	ctx := context.Background()

	same, err := e.MovieSimilarity(ctx, "m1", "m3")
	if err != nil {
		t.Fatal(err)
	}
	cross, err := e.MovieSimilarity(ctx, "m1", "m2")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(same-1.0) > eps {
		t.Errorf("same genre same rating similarity = %v, want 1.0", same)
	}
	if same <= cross {
		t.Errorf("same-genre %v should exceed cross-genre %v", same, cross)
	}

	// 不存在的影片按数据缺失处理：相似度 0，无错误
	ghost, err := e.MovieSimilarity(ctx, "m1", "ghost")
	if err != nil || ghost != 0 {
		t.Errorf("MovieSimilarity(unknown) = %v, %v, want 0, nil", ghost, err)
	}
}

// 冷启动用户走偏好类型热门：Drama 按聚合评分降序，Action 不出现。
func TestEngine_ColdStartGenreFallback(t *testing.T) {
	c := catalog.NewMemoryCatalog(
		[]*core.User{
			{ID: "fresh", PreferredGenre: "Drama"},
			{ID: "rater"},
		},
		[]*core.Movie{
			{ID: "d1", Genre: "Drama"},
			{ID: "d2", Genre: "Drama"},
			{ID: "a1", Genre: "Action"},
		},
		[]*core.Rating{
			{UserID: "rater", MovieID: "d1", Value: 3},
			{UserID: "rater", MovieID: "d2", Value: 4.5},
			{UserID: "rater", MovieID: "a1", Value: 5},
		},
	)
	e := New(c)

	items, err := e.RecommendCollaborative(context.Background(), "fresh", 0, 10)
	if err != nil {
		t.Fatalf("RecommendCollaborative() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 drama movies, got %d", len(items))
	}
	if items[0].ID != "d2" || items[1].ID != "d1" {
		t.Errorf("fallback order = [%s %s], want [d2 d1]", items[0].ID, items[1].ID)
	}
}

func TestEngine_RecommendContentBased(t *testing.T) {
	e := newTwoUserEngine()
	ctx := context.Background()

	items, err := e.RecommendContentBased(ctx, "m1", nil, 10)
	if err != nil {
		t.Fatalf("RecommendContentBased() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// 同为 Drama 的 m2 比 Action 的 m3 更相似
	if items[0].ID != "m2" {
		t.Errorf("top item = %s, want m2", items[0].ID)
	}

	// 不存在的参考影片得到空结果，不报错
	ghost, err := e.RecommendContentBased(ctx, "ghost", nil, 10)
	if err != nil {
		t.Fatalf("RecommendContentBased(unknown) error = %v, want nil", err)
	}
	if len(ghost) != 0 {
		t.Errorf("items = %v, want empty", ghost)
	}
}

func TestEngine_RecommendHybrid(t *testing.T) {
	e := newTwoUserEngine()

	items, err := e.RecommendHybrid(context.Background(), "u1", "m1", 10)
	if err != nil {
		t.Fatalf("RecommendHybrid() error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected hybrid results")
	}
	// 已评分影片不出现；分数非递增
	for i, it := range items {
		if it.ID == "m1" || it.ID == "m2" {
			t.Errorf("already-rated movie %s in hybrid results", it.ID)
		}
		if i > 0 && items[i].Score > items[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

func TestEngine_RecommendHybrid_CountLimit(t *testing.T) {
	e := newTwoUserEngine()

	items, err := e.RecommendHybrid(context.Background(), "u2", "", 1)
	if err != nil {
		t.Fatalf("RecommendHybrid() error = %v", err)
	}
	if len(items) > 1 {
		t.Errorf("expected at most 1 item, got %d", len(items))
	}
}

// 混合推荐的数据缺失语义：用户不存在返回空结果，
// 参考影片不存在则内容侧为空，退化为纯协同过滤。
func TestEngine_RecommendHybrid_MissingData(t *testing.T) {
	e := newTwoUserEngine()
	ctx := context.Background()

	items, err := e.RecommendHybrid(ctx, "ghost", "m1", 10)
	if err != nil {
		t.Fatalf("RecommendHybrid(unknown user) error = %v, want nil", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want empty", items)
	}

	items, err = e.RecommendHybrid(ctx, "u1", "ghost", 10)
	if err != nil {
		t.Fatalf("RecommendHybrid(unknown reference) error = %v, want nil", err)
	}
	if len(items) == 0 {
		t.Fatal("expected pure collaborative results when content side is empty")
	}
	for _, it := range items {
		if it.ID == "m1" || it.ID == "m2" {
			t.Errorf("already-rated movie %s in results", it.ID)
		}
	}
}

func TestEngine_Recommend_StrategyDispatch(t *testing.T) {
	e := newTwoUserEngine()
	ctx := context.Background()

	for _, strategy := range []core.Strategy{
		core.StrategyCollaborative,
		core.StrategyContent,
		core.StrategyHybrid,
	} {
		req := &Request{UserID: "u1", Strategy: strategy, ReferenceMovieID: "m1", Count: 5}
		if strategy == core.StrategyCollaborative {
			req.ReferenceMovieID = ""
		}
		items, err := e.Recommend(ctx, req)
		if err != nil {
			t.Fatalf("Recommend(%s) error = %v", strategy, err)
		}
		for _, it := range items {
			if it.ID == "m1" || it.ID == "m2" {
				t.Errorf("strategy %s recommended already-rated movie %s", strategy, it.ID)
			}
		}
	}

	if _, err := e.Recommend(ctx, &Request{UserID: "u1", Strategy: "quantum"}); !core.IsNotSupported(err) {
		t.Errorf("unknown strategy error = %v, want NOT_SUPPORTED", err)
	}
	if _, err := e.Recommend(ctx, &Request{}); err == nil {
		t.Error("expected error for missing user id")
	}
}

// 偏好类型加权让近似同分的 Drama 影片反超。
func TestEngine_ApplyGenreBoost(t *testing.T) {
	e := newTwoUserEngine()

	a := core.NewItem("a1")
	a.Score = 0.801
	a.Meta["genre"] = "Action"
	d := core.NewItem("d1")
	d.Score = 0.80
	d.Meta["genre"] = "Drama"

	out := e.ApplyGenreBoost([]*core.Item{a, d}, "Drama", 1.3)
	if out[0].ID != "d1" {
		t.Errorf("boosted drama should rank first, got %s", out[0].ID)
	}

	// 偏好未设置：恒等
	out = e.ApplyGenreBoost([]*core.Item{a, d}, "", 1.3)
	if out[0].ID != "d1" && out[0].ID != "a1" {
		t.Fatal("unexpected items")
	}
}

func TestEngine_PopularMovies(t *testing.T) {
	c := catalog.NewMemoryCatalog(
		[]*core.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}},
		[]*core.Movie{
			{ID: "m1", Genre: "Drama"},
			{ID: "m2", Genre: "Action"},
			{ID: "sparse", Genre: "Drama"},
		},
		[]*core.Rating{
			{UserID: "u1", MovieID: "m1", Value: 4},
			{UserID: "u2", MovieID: "m1", Value: 4},
			{UserID: "u3", MovieID: "m1", Value: 4},
			{UserID: "u1", MovieID: "m2", Value: 5},
			{UserID: "u2", MovieID: "m2", Value: 5},
			{UserID: "u3", MovieID: "m2", Value: 5},
			{UserID: "u1", MovieID: "sparse", Value: 5},
		},
	)
	e := New(c)
	ctx := context.Background()

	entries, err := e.PopularMovies(ctx, "", 10)
	if err != nil {
		t.Fatalf("PopularMovies() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (sparse below min ratings), got %d", len(entries))
	}
	if entries[0].Movie.ID != "m2" {
		t.Errorf("top popular = %s, want m2", entries[0].Movie.ID)
	}

	drama, err := e.PopularMovies(ctx, "Drama", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(drama) != 1 || drama[0].Movie.ID != "m1" {
		t.Errorf("drama popular = %v, want [m1]", drama)
	}
}

func TestEngine_SyncPopularAndStoreFastPath(t *testing.T) {
	e := newTwoUserEngine()
	kv := store.NewMemoryStore()
	defer kv.Close()
	e.Store = kv
	e.MinRatings = 1
	ctx := context.Background()

	if err := e.SyncPopular(ctx); err != nil {
		t.Fatalf("SyncPopular() error = %v", err)
	}
	ids, err := kv.ZRange(ctx, catalog.PopularKey(""), 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 movies in global ranking, got %v", ids)
	}
}

func TestEngine_MoviesByGenre(t *testing.T) {
	e := newTwoUserEngine()

	movies, err := e.MoviesByGenre(context.Background(), "Drama")
	if err != nil {
		t.Fatalf("MoviesByGenre() error = %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("expected 2 drama movies, got %d", len(movies))
	}
	// 按聚合评分降序：m1 (5.0) > m2 (3.5)
	if movies[0].ID != "m1" || movies[1].ID != "m2" {
		t.Errorf("order = [%s %s], want [m1 m2]", movies[0].ID, movies[1].ID)
	}
}

func TestEngine_UserRatings(t *testing.T) {
	e := newTwoUserEngine()
	ctx := context.Background()

	ratings, err := e.UserRatings(ctx, "u1")
	if err != nil {
		t.Fatalf("UserRatings() error = %v", err)
	}
	// 分值降序：m1 (5) > m2 (3)
	if len(ratings) != 2 || ratings[0].MovieID != "m1" || ratings[1].MovieID != "m2" {
		t.Errorf("ratings = %v", ratings)
	}

	if _, err := e.UserRatings(ctx, "ghost"); !core.IsNotFound(err) {
		t.Errorf("unknown user error = %v, want NOT_FOUND", err)
	}
}

func TestEngine_RateMovie(t *testing.T) {
	e := newTwoUserEngine()
	ctx := context.Background()

	if _, err := e.RateMovie(ctx, "u1", "m3", 0.5, ""); err == nil {
		t.Error("expected error for out-of-range rating")
	}
	if _, err := e.RateMovie(ctx, "u1", "m3", 5.5, ""); err == nil {
		t.Error("expected error for out-of-range rating")
	}

	isNew, err := e.RateMovie(ctx, "u1", "m3", 4, "great")
	if err != nil || !isNew {
		t.Fatalf("RateMovie(new) = %v, %v", isNew, err)
	}
	// 覆盖旧值
	isNew, err = e.RateMovie(ctx, "u1", "m3", 2, "")
	if err != nil || isNew {
		t.Fatalf("RateMovie(overwrite) = %v, %v", isNew, err)
	}

	mv, err := e.Catalog.GetMovie(ctx, "m3")
	if err != nil {
		t.Fatal(err)
	}
	// m3 聚合评分 = (u2 的 5 + u1 的 2) / 2
	if math.Abs(mv.Rating-3.5) > eps {
		t.Errorf("m3 aggregate = %v, want 3.5", mv.Rating)
	}
}
