package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/filter"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/recall"
	"github.com/moviekit/moviekit/rerank"
	"github.com/moviekit/moviekit/similarity"
)

// Request 是一次推荐请求。
type Request struct {
	// UserID 目标用户
	UserID string

	// Strategy 算法选择，空值默认 hybrid
	Strategy core.Strategy

	// ReferenceMovieID 内容召回的锚点影片（可选）；
	// 为空时内容侧以用户已评分集合为锚点
	ReferenceMovieID string

	// Count 返回条数，<=0 时取引擎默认值
	Count int
}

// UserSimilarity 计算两个用户的余弦相似度（评分交集上）。
// 评分集合不相交时为 0。任一用户不存在按数据缺失处理：相似度 0，不报错。
func (e *Engine) UserSimilarity(ctx context.Context, userA, userB string) (float64, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range []string{userA, userB} {
		if _, ok := snap.users[id]; !ok {
			return 0, nil
		}
	}
	return similarity.User(snap.matrix, userA, userB), nil
}

// MovieSimilarity 计算两部影片的内容向量余弦相似度。
// 任一影片不存在按数据缺失处理：相似度 0，不报错。
func (e *Engine) MovieSimilarity(ctx context.Context, movieA, movieB string) (float64, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	a, ok := snap.movies[movieA]
	if !ok {
		return 0, nil
	}
	b, ok := snap.movies[movieB]
	if !ok {
		return 0, nil
	}
	return similarity.Movie(a, b, snap.genres), nil
}

// RecommendCollaborative 协同过滤推荐：相似用户加权预测，冷启动走热门降级。
// 结果不包含目标用户已评分的影片。用户不存在时返回空结果，不报错。
func (e *Engine) RecommendCollaborative(ctx context.Context, userID string, k, n int) ([]*core.Item, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := snap.users[userID]
	if !ok {
		return nil, nil
	}
	if k <= 0 {
		k = e.k()
	}
	if n <= 0 {
		n = e.topN()
	}

	rctx := e.newRecommendContext(ctx, user, snap, core.StrategyCollaborative)
	cf := e.collaborativeSource(snap, k, n)
	return cf.Recall(ctx, rctx)
}

// RecommendContentBased 基于内容推荐：以参考影片为锚点排序其余影片。
// 参考影片不存在时返回空结果，不报错。
func (e *Engine) RecommendContentBased(ctx context.Context, referenceID string, exclude []string, n int) ([]*core.Item, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = e.topN()
	}

	excludeSet := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excludeSet[id] = struct{}{}
	}
	cb := &recall.Content{
		Movies:      snap.movies,
		Genres:      snap.genres,
		ReferenceID: referenceID,
		Exclude:     excludeSet,
		TopN:        n,
	}
	return cb.Recall(ctx, nil)
}

// RecommendHybrid 混合推荐：并发执行协同过滤与内容召回，
// 按 0.7/0.3 加权混合后做偏好类型加权与截断。
// referenceID 为空时内容侧以用户已评分集合为锚点；
// 内容侧无结果（含参考影片不存在）时退化为纯协同过滤排序。
// 用户不存在时返回空结果，不报错。
func (e *Engine) RecommendHybrid(ctx context.Context, userID, referenceID string, n int) ([]*core.Item, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := snap.users[userID]
	if !ok {
		return nil, nil
	}
	if n <= 0 {
		n = e.topN()
	}

	rctx := e.newRecommendContext(ctx, user, snap, core.StrategyHybrid)
	rated := snap.matrix.UserRatings(userID)
	excludeSet := make(map[string]struct{}, len(rated))
	for id := range rated {
		excludeSet[id] = struct{}{}
	}

	var cfItems, cbItems []*core.Item
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		items, err := e.collaborativeSource(snap, e.k(), n).Recall(egCtx, rctx)
		if err != nil {
			return err
		}
		cfItems = items
		return nil
	})
	eg.Go(func() error {
		cb := &recall.Content{
			Movies:      snap.movies,
			Genres:      snap.genres,
			ReferenceID: referenceID,
			Exclude:     excludeSet,
			TopN:        n,
		}
		items, err := cb.Recall(egCtx, rctx)
		if err != nil {
			return err
		}
		cbItems = items
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	blended := rerank.Blend(cfItems, cbItems, 0)
	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&filter.FilterNode{Filters: []filter.Filter{filter.NewRatedFilter(rated)}},
		&rerank.GenreBoost{Factor: e.BoostFactor},
		&rerank.TopNNode{N: n},
	}}
	return p.Run(ctx, rctx, blended)
}

// ApplyGenreBoost 对榜单做偏好类型加权并重排。
// preferredGenre 为空时恒等返回。
func (e *Engine) ApplyGenreBoost(items []*core.Item, preferredGenre string, factor float64) []*core.Item {
	if factor <= 0 {
		factor = e.BoostFactor
	}
	return rerank.Boost(items, preferredGenre, factor)
}

// Recommend 按请求的算法分发，最后统一做偏好类型加权。
func (e *Engine) Recommend(ctx context.Context, req *Request) ([]*core.Item, error) {
	if req == nil || req.UserID == "" {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: user id is required")
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = core.StrategyHybrid
	}
	n := req.Count
	if n <= 0 {
		n = e.topN()
	}

	switch strategy {
	case core.StrategyCollaborative:
		items, err := e.RecommendCollaborative(ctx, req.UserID, e.k(), n)
		if err != nil {
			return nil, err
		}
		return e.boostForUser(ctx, req.UserID, items), nil

	case core.StrategyContent:
		items, err := e.recommendContentForUser(ctx, req.UserID, req.ReferenceMovieID, n)
		if err != nil {
			return nil, err
		}
		return e.boostForUser(ctx, req.UserID, items), nil

	case core.StrategyHybrid:
		// hybrid 链路内部已做加权
		return e.RecommendHybrid(ctx, req.UserID, req.ReferenceMovieID, n)

	default:
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "engine: unknown strategy: "+string(strategy))
	}
}

// recommendContentForUser 面向用户的内容推荐：排除已评分影片，
// referenceID 为空时以用户已评分集合为锚点。
// 用户或参考影片不存在时返回空结果，不报错。
func (e *Engine) recommendContentForUser(ctx context.Context, userID, referenceID string, n int) ([]*core.Item, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := snap.users[userID]
	if !ok {
		return nil, nil
	}

	rctx := e.newRecommendContext(ctx, user, snap, core.StrategyContent)
	rated := snap.matrix.UserRatings(userID)
	excludeSet := make(map[string]struct{}, len(rated))
	for id := range rated {
		excludeSet[id] = struct{}{}
	}
	cb := &recall.Content{
		Movies:      snap.movies,
		Genres:      snap.genres,
		ReferenceID: referenceID,
		Exclude:     excludeSet,
		TopN:        n,
	}
	return cb.Recall(ctx, rctx)
}

// boostForUser 查用户偏好类型后做加权；用户读取失败时原样返回。
func (e *Engine) boostForUser(ctx context.Context, userID string, items []*core.Item) []*core.Item {
	user, err := e.Catalog.GetUser(ctx, userID)
	if err != nil || user == nil {
		return items
	}
	return rerank.Boost(items, user.PreferredGenre, e.BoostFactor)
}

// collaborativeSource 构建协同过滤召回源（含热门降级）。
func (e *Engine) collaborativeSource(snap *snapshot, k, n int) *recall.UserCF {
	return &recall.UserCF{
		Matrix: snap.matrix,
		Users:  snap.users,
		Movies: snap.movies,
		K:      k,
		TopN:   n,
		Fallback: &recall.Popular{
			Movies: snap.movies,
			Store:  e.Store,
		},
	}
}
