package rerank

import (
	"math"
	"testing"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pkg/utils"
)

func item(id string, score float64) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	return it
}

const eps = 1e-9

func TestBlend_BothSides(t *testing.T) {
	collab := []*core.Item{item("m1", 4.0)} // 预测评分量纲
	content := []*core.Item{item("m1", 0.5)} // 相似度量纲

	out := Blend(collab, content, 0)
	if len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
	// 0.7*(4/5) + 0.3*((0.5+1)/2) = 0.56 + 0.225 = 0.785
	if math.Abs(out[0].Score-0.785) > eps {
		t.Errorf("hybrid score = %v, want 0.785", out[0].Score)
	}
	if out[0].Features["cf_score"] != 4.0 || out[0].Features["cb_score"] != 0.5 {
		t.Errorf("component scores not preserved: %v", out[0].Features)
	}
}

// 只出现在单路的影片，缺失侧按 0 计。
func TestBlend_MissingSideIsZero(t *testing.T) {
	collab := []*core.Item{item("cf_only", 5.0)}
	content := []*core.Item{item("cb_only", 1.0)}

	out := Blend(collab, content, 0)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}

	scores := map[string]float64{}
	for _, it := range out {
		scores[it.ID] = it.Score
	}
	// cf_only: 0.7*(5/5) + 0.3*0 = 0.7
	if math.Abs(scores["cf_only"]-0.7) > eps {
		t.Errorf("cf_only = %v, want 0.7", scores["cf_only"])
	}
	// cb_only: 0.7*0 + 0.3*((1+1)/2) = 0.3
	if math.Abs(scores["cb_only"]-0.3) > eps {
		t.Errorf("cb_only = %v, want 0.3", scores["cb_only"])
	}
	if out[0].ID != "cf_only" {
		t.Errorf("order = %s first, want cf_only", out[0].ID)
	}
}

func TestBlend_CountTruncates(t *testing.T) {
	collab := []*core.Item{item("m1", 5), item("m2", 4), item("m3", 3)}

	out := Blend(collab, nil, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

// 同分按影片 ID 升序。
func TestBlend_TieBreaksByID(t *testing.T) {
	collab := []*core.Item{item("m2", 4), item("m1", 4)}

	out := Blend(collab, nil, 0)
	if out[0].ID != "m1" || out[1].ID != "m2" {
		t.Errorf("tie order = [%s %s], want [m1 m2]", out[0].ID, out[1].ID)
	}
}

func TestBlend_EmptyContentKeepsCFOrder(t *testing.T) {
	collab := []*core.Item{item("m1", 5), item("m2", 3)}

	out := Blend(collab, nil, 0)
	if len(out) != 2 || out[0].ID != "m1" || out[1].ID != "m2" {
		t.Errorf("pure CF order broken: %v", out)
	}
}

// 双路命中时标签合并去重：两路都带 genre=Drama 不应累积成 "Drama|Drama"，
// 否则下游类型加权匹配不上。
func TestBlend_DualHitLabelMerge(t *testing.T) {
	cf := item("m1", 4.0)
	cf.PutLabel("genre", utils.Label{Value: "Drama", Source: "recall"})
	cf.PutLabel("recall_source", utils.Label{Value: "cf", Source: "recall"})
	cb := item("m1", 0.5)
	cb.PutLabel("genre", utils.Label{Value: "Drama", Source: "recall"})
	cb.PutLabel("recall_source", utils.Label{Value: "content", Source: "recall"})

	out := Blend([]*core.Item{cf}, []*core.Item{cb}, 0)
	if lbl, _ := out[0].GetLabel("genre"); lbl.Value != "Drama" {
		t.Errorf("genre label = %q, want Drama", lbl.Value)
	}
	// 取值不同的标签仍然累积，保留双路来源
	if lbl, _ := out[0].GetLabel("recall_source"); lbl.Value != "cf|content" {
		t.Errorf("recall_source label = %q, want cf|content", lbl.Value)
	}
}

func TestHybridBlender_CustomWeights(t *testing.T) {
	b := &HybridBlender{CollabWeight: 0.5, ContentWeight: 0.5}
	out := b.Blend([]*core.Item{item("m1", 5.0)}, []*core.Item{item("m1", 1.0)}, 0)

	// 0.5*(5/5) + 0.5*((1+1)/2) = 1.0
	if math.Abs(out[0].Score-1.0) > eps {
		t.Errorf("score = %v, want 1.0", out[0].Score)
	}
}
