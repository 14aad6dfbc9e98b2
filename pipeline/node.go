package pipeline

import (
	"context"

	"github.com/moviekit/moviekit/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回阶段：生成候选影片集
	KindFilter      Kind = "filter"      // 过滤阶段：剔除已评分/规则排除的候选
	KindReRank      Kind = "rerank"      // 重排阶段：混合加权、类型加权、TopN 截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：补充元数据或最终结果修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态，方便召回生成、过滤截断、重排等操作。
// Node 自身不持有跨请求状态，同一 Node 实例可被并发请求安全复用。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeBuilder 根据配置构建 Node，用于配置驱动的 Pipeline 组装。
type NodeBuilder func(config map[string]interface{}) (Node, error)
