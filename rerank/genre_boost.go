package rerank

import (
	"context"
	"sort"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/pkg/utils"
)

// DefaultBoostFactor 偏好类型的默认加权系数（+30%）。
const DefaultBoostFactor = 1.3

// GenreBoost 是类型加权重排 Node：
// 命中用户偏好类型的候选，分数乘以固定系数后重新排序。
//
// 约定：
//   - 偏好类型未设置时是恒等变换，输入顺序原样保留
//   - 加权是确定性的乘法，不引入随机
//   - 重排按分数降序，同分按影片 ID 升序
type GenreBoost struct {
	// Genre 显式偏好类型；为空时取 rctx 的用户画像
	Genre string

	// Factor 加权系数，<=0 时默认 1.3
	Factor float64
}

func (n *GenreBoost) Name() string {
	return "rerank.genre_boost"
}

func (n *GenreBoost) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *GenreBoost) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	genre := n.Genre
	if genre == "" && rctx != nil {
		genre = rctx.PreferredGenre()
	}
	return Boost(items, genre, n.Factor), nil
}

// Boost 对命中 preferredGenre 的候选做乘法加权并重排。
// preferredGenre 为空时恒等返回（顺序不变）。factor <= 0 时取默认 1.3。
//
// 候选的类型从 label["genre"] 读取，缺失时从 meta["genre"] 兜底。
func Boost(items []*core.Item, preferredGenre string, factor float64) []*core.Item {
	if preferredGenre == "" || len(items) == 0 {
		return items
	}
	if factor <= 0 {
		factor = DefaultBoostFactor
	}

	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if itemGenre(it) == preferredGenre {
			it.Score *= factor
			it.PutLabel("boosted", utils.Label{Value: preferredGenre, Source: "boost"})
		}
		out = append(out, it)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// itemGenre 读取候选的类型：label 优先，meta 兜底。
func itemGenre(it *core.Item) string {
	if lbl, ok := it.GetLabel("genre"); ok && lbl.Value != "" {
		return lbl.Value
	}
	if it.Meta != nil {
		if s, ok := it.Meta["genre"].(string); ok {
			return s
		}
	}
	return ""
}
