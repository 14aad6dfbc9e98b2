package pipeline

import (
	"context"

	"github.com/moviekit/moviekit/core"
)

// Pipeline 是 moviekit 的核心抽象：把推荐逻辑拆成可组合的 Node 链。
// 数据单向流动：召回 → 过滤 → 重排；每个 Node 都是输入的纯函数，
// 不同请求可以并发执行同一条 Pipeline。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
