package recall

import (
	"context"
	"sort"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/pkg/utils"
	"github.com/moviekit/moviekit/similarity"
)

// Content 是基于内容的召回源（Content-Based Recommendation）。
//
// 核心思想："用户喜欢某些特征的影片，就推荐具有相似特征的其他影片"
//
// 影片特征向量 = 类型 one-hot 编码 ++ 归一化聚合评分（rating/5），
// 相似度为向量余弦，取值落在 [0,1]（向量非负）。
//
// 两种参考形态：
//   - ReferenceID 非空：以该影片为锚点排序其余影片（"看了这部，还可能看什么"）
//   - ReferenceID 为空：以用户已评分集合为锚点，相似度按用户评分加权平均
type Content struct {
	// Movies 目录快照
	Movies map[string]*core.Movie

	// Genres 排序后的全类型列表（one-hot 维度，所有影片向量必须对齐）
	Genres []string

	// ReferenceID 参考影片 ID；为空时退回用户已评分集合
	ReferenceID string

	// Exclude 需要排除的影片 ID 集合
	Exclude map[string]struct{}

	// TopN 最终返回的影片数量，<=0 时默认 10
	TopN int
}

func (r *Content) Name() string        { return "recall.content" }
func (r *Content) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Content) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Content) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	topN := r.TopN
	if topN <= 0 {
		topN = 10
	}

	if r.ReferenceID != "" {
		return r.similarToMovie(topN), nil
	}
	return r.similarToHistory(rctx, topN), nil
}

// similarToMovie 以单部影片为锚点。参考影片不存在时返回空结果，不报错。
func (r *Content) similarToMovie(topN int) []*core.Item {
	ref, ok := r.Movies[r.ReferenceID]
	if !ok {
		return nil
	}

	scores := make([]scoredMovie, 0, len(r.Movies))
	for id, mv := range r.Movies {
		if id == r.ReferenceID {
			continue
		}
		if r.excluded(id) {
			continue
		}
		scores = append(scores, scoredMovie{
			movieID: id,
			score:   similarity.Movie(ref, mv, r.Genres),
		})
	}
	return r.rankAndBuild(scores, topN)
}

// similarToHistory 以用户已评分集合为锚点：
// score(cand) = Σ(rating_i × sim(rated_i, cand)) / Σ(rating_i)，
// 评分越高的影片对口味画像的贡献越大。
func (r *Content) similarToHistory(rctx *core.RecommendContext, topN int) []*core.Item {
	if rctx == nil || rctx.User == nil || len(rctx.User.RatedMovies) == 0 {
		return nil
	}

	type anchor struct {
		movie  *core.Movie
		weight float64
	}
	anchors := make([]anchor, 0, len(rctx.User.RatedMovies))
	var totalWeight float64
	for movieID, rating := range rctx.User.RatedMovies {
		mv, ok := r.Movies[movieID]
		if !ok {
			continue
		}
		anchors = append(anchors, anchor{movie: mv, weight: rating})
		totalWeight += rating
	}
	if len(anchors) == 0 || totalWeight == 0 {
		return nil
	}

	scores := make([]scoredMovie, 0, len(r.Movies))
	for id, mv := range r.Movies {
		if rctx.User.HasRated(id) || r.excluded(id) {
			continue
		}
		var weighted float64
		for _, a := range anchors {
			weighted += a.weight * similarity.Movie(a.movie, mv, r.Genres)
		}
		scores = append(scores, scoredMovie{movieID: id, score: weighted / totalWeight})
	}
	return r.rankAndBuild(scores, topN)
}

type scoredMovie struct {
	movieID string
	score   float64
}

func (r *Content) rankAndBuild(scores []scoredMovie, topN int) []*core.Item {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].movieID < scores[j].movieID
	})
	if len(scores) > topN {
		scores = scores[:topN]
	}

	out := make([]*core.Item, 0, len(scores))
	for _, s := range scores {
		it := core.NewItem(s.movieID)
		it.Score = s.score
		it.Features["cb_score"] = s.score
		if mv, ok := r.Movies[s.movieID]; ok {
			it.Meta["title"] = mv.Title
			it.Meta["genre"] = mv.Genre
			it.Meta["year"] = mv.Year
			it.PutLabel("genre", utils.Label{Value: mv.Genre, Source: "recall"})
		}
		it.PutLabel("recall_source", utils.Label{Value: "content", Source: "recall"})
		out = append(out, it)
	}
	return out
}

func (r *Content) excluded(movieID string) bool {
	if r.Exclude == nil {
		return false
	}
	_, ok := r.Exclude[movieID]
	return ok
}
