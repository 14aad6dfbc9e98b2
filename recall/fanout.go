package recall

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/pkg/utils"
)

// MergeStrategy 决定多路召回结果如何合并为一个候选集。
type MergeStrategy interface {
	Merge(all []*core.Item) []*core.Item
}

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、并发上限、可插拔合并策略。
// 单个召回源超时或出错时只丢弃该路结果，不中断其他召回源。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy // 为空时默认 FirstMergeStrategy
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		all   []*core.Item
		eg, _ = errgroup.WithContext(ctx)
	)

	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		s := src
		priority := i // 索引越小优先级越高

		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := s.Recall(recallCtx, rctx)
			if err != nil {
				// 超时或错误时丢弃该路结果，不中断其他召回源
				return nil
			}

			// 记录召回来源与优先级，方便 explain / 合并策略消费
			for _, it := range items {
				it.PutLabel("recall_source", utils.Label{Value: s.Name(), Source: "recall"})
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(priority), Source: "recall"})
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	strategy := n.MergeStrategy
	if strategy == nil {
		strategy = &FirstMergeStrategy{}
	}
	return strategy.Merge(all), nil
}

// FirstMergeStrategy 按 ID 去重，保留第一个出现的候选；
// 重复候选的 Labels 与 Features 合并进保留者（默认策略）。
type FirstMergeStrategy struct{}

func (*FirstMergeStrategy) Merge(all []*core.Item) []*core.Item {
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			mergeInto(old, it)
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

// UnionMergeStrategy 合并所有结果，不去重（用于需要保留所有来源的场景，
// 例如下游按来源拆分做混合加权）。
type UnionMergeStrategy struct{}

func (*UnionMergeStrategy) Merge(all []*core.Item) []*core.Item {
	return all
}

// PriorityMergeStrategy 按优先级合并：相同 ID 时保留优先级更高的（索引更小）。
type PriorityMergeStrategy struct{}

func (*PriorityMergeStrategy) Merge(all []*core.Item) []*core.Item {
	seen := make(map[string]*core.Item, len(all))
	order := make([]string, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		old, exists := seen[it.ID]
		if !exists {
			seen[it.ID] = it
			order = append(order, it.ID)
			continue
		}
		if itemPriority(it) < itemPriority(old) {
			mergeInto(it, old)
			seen[it.ID] = it
		} else {
			mergeInto(old, it)
		}
	}
	out := make([]*core.Item, 0, len(seen))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out
}

// itemPriority 读取 recall_priority label；缺失或不可解析时视为最低优先级。
// 被合并过的候选会累积成 "2|10" 这样的串，第一段是保留者的优先级。
func itemPriority(it *core.Item) int {
	lbl, ok := it.GetLabel("recall_priority")
	if !ok {
		return 999
	}
	v := lbl.Value
	if i := strings.IndexByte(v, '|'); i >= 0 {
		v = v[:i]
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		return 999
	}
	return p
}

// mergeInto 将 src 的 Labels 与 Features 并入 dst（dst 已有的 Feature 不覆盖）。
func mergeInto(dst, src *core.Item) {
	for k, v := range src.Labels {
		dst.PutLabel(k, v)
	}
	for k, v := range src.Features {
		if _, ok := dst.Features[k]; !ok {
			dst.Features[k] = v
		}
	}
}
