package filter

import (
	"context"

	"github.com/moviekit/moviekit/core"
)

// RatedFilter 过滤掉用户已经评过分的影片。
// 推荐结果永远不包含目标用户已评分的影片，这是引擎的硬性约定。
//
// 已评分集合来源优先级：
//   - Ratings（本次请求快照中该用户的评分行）
//   - rctx.User.RatedMovies（用户画像）
type RatedFilter struct {
	// Ratings 目标用户的评分快照：movieID → 评分值
	Ratings map[string]float64
}

// NewRatedFilter 创建一个已评分过滤器。
func NewRatedFilter(ratings map[string]float64) *RatedFilter {
	return &RatedFilter{Ratings: ratings}
}

func (f *RatedFilter) Name() string {
	return "filter.rated"
}

func (f *RatedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	if f.Ratings != nil {
		if _, ok := f.Ratings[item.ID]; ok {
			return true, nil
		}
	}

	if rctx != nil && rctx.User != nil && rctx.User.HasRated(item.ID) {
		return true, nil
	}

	return false, nil
}
