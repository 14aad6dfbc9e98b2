package core

import "github.com/moviekit/moviekit/pkg/utils"

// Strategy 是单次请求的算法选择，每次调用显式传入，
// 不存在跨请求共享的"当前算法"状态。
type Strategy string

const (
	StrategyCollaborative Strategy = "collaborative" // 协同过滤（相似用户加权预测）
	StrategyContent       Strategy = "content"       // 基于内容（影片特征向量相似度）
	StrategyHybrid        Strategy = "hybrid"        // 混合（0.7 协同 + 0.3 内容）
)

// RecommendContext 承载用户/场景信息，贯穿整个 Pipeline 透传。
// 每次请求独立构建，各 Node 只读不写（Labels 除外），可安全并发。
type RecommendContext struct {
	UserID string
	Scene  string

	// Strategy 本次请求使用的算法，默认 hybrid
	Strategy Strategy

	// User 是用户画像；为空时各阶段按冷启动处理
	User *UserProfile

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	// 例如：新用户、重度影迷等
	Labels map[string]utils.Label

	// Params 请求级上下文参数，例如 reference_movie_id、result_count
	Params map[string]any
}

// PreferredGenre 返回用户的偏好类型；画像缺失或未设置时返回空串。
func (rctx *RecommendContext) PreferredGenre() string {
	if rctx == nil || rctx.User == nil {
		return ""
	}
	return rctx.User.PreferredGenre
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
