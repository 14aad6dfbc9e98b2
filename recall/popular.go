package recall

import (
	"context"
	"sort"

	"github.com/moviekit/moviekit/catalog"
	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/pkg/utils"
)

// Popular 是热门召回源：按聚合评分降序返回影片，是冷启动的承接策略。
//
// 行为：
//   - 类型限定：优先使用显式 Genre，否则取用户画像的偏好类型；
//     限定类型下没有任何影片时退回全局热门
//   - 如果配置了 KeyValueStore，优先走榜单有序集合
//     （key: "popular:genre:<g>" / "popular:all"，由 catalog.PopularityIndex 维护）
//   - 否则直接在目录快照上按聚合评分排序
//
// Popular 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Popular struct {
	// Movies 目录快照
	Movies map[string]*core.Movie

	// Store 榜单缓存（可选）
	Store core.KeyValueStore

	// Genre 显式类型限定；为空时取 rctx 的偏好类型
	Genre string

	// TopN 最终返回的影片数量，<=0 时默认 10
	TopN int
}

func (r *Popular) Name() string        { return "recall.popular" }
func (r *Popular) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Popular) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Popular) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	topN := r.TopN
	if topN <= 0 {
		topN = 10
	}

	genre := r.Genre
	if genre == "" && rctx != nil {
		genre = rctx.PreferredGenre()
	}
	// 限定类型下没有任何影片时，退回全局热门
	if genre != "" && !r.hasGenre(genre) {
		genre = ""
	}

	// 快路径：榜单有序集合
	if r.Store != nil {
		if ids := r.zrange(ctx, catalog.PopularKey(genre), topN); len(ids) > 0 {
			return r.buildItems(ids, topN), nil
		}
	}

	// 慢路径：目录快照排序
	ids := make([]string, 0, len(r.Movies))
	for id, mv := range r.Movies {
		if genre != "" && mv.Genre != genre {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.Movies[ids[i]], r.Movies[ids[j]]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return ids[i] < ids[j]
	})
	return r.buildItems(ids, topN), nil
}

func (r *Popular) hasGenre(genre string) bool {
	for _, mv := range r.Movies {
		if mv.Genre == genre {
			return true
		}
	}
	return false
}

func (r *Popular) zrange(ctx context.Context, key string, topN int) []string {
	members, err := r.Store.ZRange(ctx, key, 0, int64(topN)-1)
	if err != nil {
		return nil
	}
	// 榜单里可能残留已下架影片，对照快照过滤
	ids := make([]string, 0, len(members))
	for _, id := range members {
		if _, ok := r.Movies[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Popular) buildItems(ids []string, topN int) []*core.Item {
	if len(ids) > topN {
		ids = ids[:topN]
	}
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		mv := r.Movies[id]
		it := core.NewItem(id)
		it.Score = mv.Rating
		it.Meta["title"] = mv.Title
		it.Meta["genre"] = mv.Genre
		it.Meta["year"] = mv.Year
		it.PutLabel("recall_source", utils.Label{Value: "popular", Source: "recall"})
		it.PutLabel("genre", utils.Label{Value: mv.Genre, Source: "recall"})
		out = append(out, it)
	}
	return out
}
