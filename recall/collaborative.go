package recall

import (
	"context"
	"sort"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/matrix"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/pkg/utils"
	"github.com/moviekit/moviekit/similarity"
)

// UserCF 是基于用户的协同过滤召回源（User-based Collaborative Filtering）。
//
// 核心思想："兴趣相似的用户，喜欢相似的影片"
//
// 算法流程：
//  1. 与每个评过候选影片的其他用户计算余弦相似度（评分交集上）
//  2. 取相似度 > 0 的 TopK 相似用户（同分时用户 ID 小者优先，保证确定性）
//  3. 对目标用户未看过的候选影片，用邻居评分按相似度加权平均预测；
//     没有任何邻居评过的影片直接排除，不赋默认分
//  4. 按预测分降序排序，同分按影片 ID 升序
//
// 降级链（按序）：
//   - 用户无评分（冷启动）→ Fallback（偏好类型热门，未设置偏好则全局热门）
//   - 有评分但无可用邻居预测 → 按用户自己的类型均分阶梯推未看影片
//   - 仍为空 → Fallback
//
// 每次请求用当时的快照新建实例，跨请求不复用内部状态。
type UserCF struct {
	// Matrix 本次请求的评分矩阵快照
	Matrix matrix.Matrix

	// Users / Movies 目录快照
	Users  map[string]*core.User
	Movies map[string]*core.Movie

	// Candidates 候选影片 ID；为空表示目录全量
	Candidates []string

	// K 参与预测的相似用户数，<=0 时默认 5
	K int

	// TopN 最终返回的影片数量，<=0 时默认 10
	TopN int

	// Fallback 冷启动降级源；为空时在目录快照上临时构建
	Fallback *Popular
}

func (r *UserCF) Name() string        { return "recall.cf" }
func (r *UserCF) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *UserCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *UserCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	// 用户不存在：无可推荐，不是错误
	if _, ok := r.Users[rctx.UserID]; !ok {
		return nil, nil
	}

	topN := r.TopN
	if topN <= 0 {
		topN = 10
	}

	target := r.Matrix.UserRatings(rctx.UserID)
	candidates := r.candidateIDs(target)

	// 冷启动：无评分历史，直接走热门降级
	if len(target) == 0 {
		return r.fallback(ctx, rctx, target, topN)
	}

	neighbors := r.topKNeighbors(rctx.UserID, candidates)

	type prediction struct {
		movieID string
		score   float64
	}
	preds := make([]prediction, 0, len(candidates))
	for _, movieID := range candidates {
		var weighted, total float64
		for _, nb := range neighbors {
			if rating, ok := r.Matrix.Rating(nb.userID, movieID); ok {
				weighted += nb.sim * rating
				total += nb.sim
			}
		}
		// 没有邻居评过：排除而不是赋默认分
		if total <= 0 {
			continue
		}
		preds = append(preds, prediction{movieID: movieID, score: weighted / total})
	}

	// 有评分但预测为空：先按用户自己的类型口味推，再退热门
	if len(preds) == 0 {
		if out := r.genreTasteFallback(target, candidates, topN); len(out) > 0 {
			return out, nil
		}
		return r.fallback(ctx, rctx, target, topN)
	}

	sort.Slice(preds, func(i, j int) bool {
		if preds[i].score != preds[j].score {
			return preds[i].score > preds[j].score
		}
		return preds[i].movieID < preds[j].movieID
	})
	if len(preds) > topN {
		preds = preds[:topN]
	}

	out := make([]*core.Item, 0, len(preds))
	for _, p := range preds {
		out = append(out, r.newItem(p.movieID, p.score, "cf"))
	}
	return out, nil
}

type neighbor struct {
	userID string
	sim    float64
}

// topKNeighbors 返回与目标用户相似度最高的 K 个用户（仅统计评过候选影片的用户）。
// 先按用户 ID 升序遍历，再做稳定排序，保证同分时 ID 小者在前。
func (r *UserCF) topKNeighbors(targetID string, candidates []string) []neighbor {
	k := r.K
	if k <= 0 {
		k = 5
	}

	candSet := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		candSet[id] = struct{}{}
	}

	neighbors := make([]neighbor, 0)
	for _, userID := range r.Matrix.Users() {
		if userID == targetID {
			continue
		}
		if !r.ratedAnyCandidate(userID, candSet) {
			continue
		}
		sim := similarity.User(r.Matrix, targetID, userID)
		if sim > 0 {
			neighbors = append(neighbors, neighbor{userID: userID, sim: sim})
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].sim > neighbors[j].sim
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

func (r *UserCF) ratedAnyCandidate(userID string, candSet map[string]struct{}) bool {
	for movieID := range r.Matrix.UserRatings(userID) {
		if _, ok := candSet[movieID]; ok {
			return true
		}
	}
	return false
}

// candidateIDs 返回排除目标用户已评分影片后的候选列表（升序，保证确定性）。
func (r *UserCF) candidateIDs(target map[string]float64) []string {
	var ids []string
	if len(r.Candidates) > 0 {
		ids = make([]string, 0, len(r.Candidates))
		for _, id := range r.Candidates {
			if _, ok := r.Movies[id]; !ok {
				continue
			}
			if _, rated := target[id]; rated {
				continue
			}
			ids = append(ids, id)
		}
	} else {
		ids = make([]string, 0, len(r.Movies))
		for id := range r.Movies {
			if _, rated := target[id]; rated {
				continue
			}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// genreTasteFallback 按用户自己评分历史的类型均分，推同类型的高分未看影片。
// 类型按均分降序（同分按类型名升序），每个类型内按聚合评分降序、影片 ID 升序。
func (r *UserCF) genreTasteFallback(target map[string]float64, candidates []string, topN int) []*core.Item {
	genreSum := make(map[string]float64)
	genreCnt := make(map[string]int)
	for movieID, rating := range target {
		mv, ok := r.Movies[movieID]
		if !ok {
			continue
		}
		genreSum[mv.Genre] += rating
		genreCnt[mv.Genre]++
	}
	if len(genreCnt) == 0 {
		return nil
	}

	type genreAvg struct {
		genre string
		avg   float64
	}
	genres := make([]genreAvg, 0, len(genreCnt))
	for g, cnt := range genreCnt {
		genres = append(genres, genreAvg{genre: g, avg: genreSum[g] / float64(cnt)})
	}
	sort.Slice(genres, func(i, j int) bool {
		if genres[i].avg != genres[j].avg {
			return genres[i].avg > genres[j].avg
		}
		return genres[i].genre < genres[j].genre
	})

	out := make([]*core.Item, 0, topN)
	for _, ga := range genres {
		inGenre := make([]string, 0)
		for _, id := range candidates {
			if r.Movies[id].Genre == ga.genre {
				inGenre = append(inGenre, id)
			}
		}
		sort.Slice(inGenre, func(i, j int) bool {
			a, b := r.Movies[inGenre[i]], r.Movies[inGenre[j]]
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return inGenre[i] < inGenre[j]
		})
		for _, id := range inGenre {
			if len(out) >= topN {
				return out
			}
			// 用该类型的用户均分作为预测分
			score := ga.avg
			if score > 5.0 {
				score = 5.0
			}
			out = append(out, r.newItem(id, score, "cf_genre_taste"))
		}
	}
	return out
}

// fallback 冷启动降级：偏好类型热门，未设置偏好则全局热门。
// 已评分影片同样不出现在降级结果里，多取 len(rated) 条再截断补位。
func (r *UserCF) fallback(ctx context.Context, rctx *core.RecommendContext, rated map[string]float64, topN int) ([]*core.Item, error) {
	pop := r.Fallback
	if pop == nil {
		pop = &Popular{Movies: r.Movies}
	}
	fb := *pop
	fb.TopN = topN + len(rated)
	items, err := fb.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if _, ok := rated[it.ID]; ok {
			continue
		}
		it.PutLabel("cf_fallback", utils.Label{Value: "cold_start", Source: "recall"})
		out = append(out, it)
		if len(out) >= topN {
			break
		}
	}
	return out, nil
}

func (r *UserCF) newItem(movieID string, score float64, source string) *core.Item {
	it := core.NewItem(movieID)
	it.Score = score
	it.Features["cf_score"] = score
	if mv, ok := r.Movies[movieID]; ok {
		it.Meta["title"] = mv.Title
		it.Meta["genre"] = mv.Genre
		it.Meta["year"] = mv.Year
		it.PutLabel("genre", utils.Label{Value: mv.Genre, Source: "recall"})
	}
	it.PutLabel("recall_source", utils.Label{Value: source, Source: "recall"})
	return it
}
