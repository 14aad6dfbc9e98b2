package recall

import (
	"context"

	"github.com/moviekit/moviekit/core"
)

// Source 表示一个可复用的召回源（协同过滤/内容/热门/...）。
// 你可以把它理解为"可并发 fan-out 的策略单元"。
// 召回源是输入快照的纯函数：数据缺失返回 (nil, nil)，不报错。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
