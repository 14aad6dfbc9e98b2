package filter

import (
	"context"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pkg/dsl"
)

// RuleFilter 是规则过滤器：表达式命中的候选被过滤。
// 规则用 CEL 表达式描述，运营侧改配置即可生效，不需要发版。
//
// 示例：
//   - `label.genre == "Horror" && rctx.age < 18` → 未成年人排除恐怖片
//   - `item.score < 2.0` → 排除低分候选
type RuleFilter struct {
	// Expr CEL 表达式；为空时不过滤任何候选
	Expr string
}

// NewRuleFilter 创建一个规则过滤器。
func NewRuleFilter(expr string) *RuleFilter {
	return &RuleFilter{Expr: expr}
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Expr == "" {
		return false, nil
	}
	if item == nil {
		return true, nil
	}

	hit, err := dsl.NewEval(item, rctx).Evaluate(f.Expr)
	if err != nil {
		// 表达式坏掉时保守放行，由 FilterNode 记录但不中断
		return false, err
	}
	return hit, nil
}
