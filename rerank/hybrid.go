package rerank

import (
	"sort"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pkg/utils"
)

// 混合权重：0.7 协同过滤 + 0.3 基于内容。
// 权重固定，不随两路候选的数据充分程度变化。
const (
	DefaultCollabWeight  = 0.7
	DefaultContentWeight = 0.3
)

// HybridBlender 把协同过滤结果与基于内容结果线性混合成一个榜单。
//
// 两路分数量纲不同，先归一到 [0,1] 再加权：
//   - 协同过滤是预测评分量纲（1–5）：score / 5
//   - 内容相似度量纲（-1–1）：(score + 1) / 2
//
// 只出现在单路的影片，缺失侧按 0 计——缺席即惩罚，不补中性分。
type HybridBlender struct {
	// CollabWeight / ContentWeight 混合权重，<=0 时取默认 0.7 / 0.3
	CollabWeight  float64
	ContentWeight float64
}

// Blend 混合两路结果：按 hybridScore 降序，同分按影片 ID 升序，截断到 count。
// count <= 0 表示不截断。
func (b *HybridBlender) Blend(collab, content []*core.Item, count int) []*core.Item {
	wCF := b.CollabWeight
	if wCF <= 0 {
		wCF = DefaultCollabWeight
	}
	wCB := b.ContentWeight
	if wCB <= 0 {
		wCB = DefaultContentWeight
	}

	type blended struct {
		item    *core.Item
		cfScore float64
		cbScore float64
		hasCF   bool
		hasCB   bool
	}
	merged := make(map[string]*blended, len(collab)+len(content))
	order := make([]string, 0, len(collab)+len(content))

	for _, it := range collab {
		if it == nil {
			continue
		}
		merged[it.ID] = &blended{item: it, cfScore: it.Score, hasCF: true}
		order = append(order, it.ID)
	}
	for _, it := range content {
		if it == nil {
			continue
		}
		if bd, ok := merged[it.ID]; ok {
			bd.cbScore = it.Score
			bd.hasCB = true
			// 双路命中：合并解释信息。取值相同的标签（如 genre）跳过，
			// 避免累积成 "Drama|Drama" 之类的噪声
			for k, v := range it.Labels {
				if old, exists := bd.item.GetLabel(k); exists && old.Value == v.Value {
					continue
				}
				bd.item.PutLabel(k, v)
			}
			continue
		}
		merged[it.ID] = &blended{item: it, cbScore: it.Score, hasCB: true}
		order = append(order, it.ID)
	}

	out := make([]*core.Item, 0, len(order))
	for _, id := range order {
		bd := merged[id]
		var cfNorm, cbNorm float64
		if bd.hasCF {
			cfNorm = bd.cfScore / 5.0
		}
		if bd.hasCB {
			cbNorm = (bd.cbScore + 1.0) / 2.0
		}
		it := bd.item
		it.Score = wCF*cfNorm + wCB*cbNorm
		it.Features["cf_score"] = bd.cfScore
		it.Features["cb_score"] = bd.cbScore
		it.Features["hybrid_score"] = it.Score
		it.PutLabel("blend", utils.Label{Value: "hybrid", Source: "blend"})
		out = append(out, it)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// Blend 使用默认权重（0.7/0.3）混合两路结果。
func Blend(collab, content []*core.Item, count int) []*core.Item {
	b := &HybridBlender{}
	return b.Blend(collab, content, count)
}
