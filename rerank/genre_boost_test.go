package rerank

import (
	"context"
	"math"
	"testing"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/pkg/utils"
)

func genreItem(id string, score float64, genre string) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.PutLabel("genre", utils.Label{Value: genre, Source: "recall"})
	return it
}

func TestBoost_MatchingGenreMultiplied(t *testing.T) {
	items := []*core.Item{
		genreItem("a1", 0.80, "Action"),
		genreItem("d1", 0.78, "Drama"),
	}

	out := Boost(items, "Drama", 1.3)
	if out[0].ID != "d1" {
		t.Errorf("boosted drama movie should rank first, got %s", out[0].ID)
	}
	var d1 *core.Item
	for _, it := range out {
		if it.ID == "d1" {
			d1 = it
		}
	}
	if math.Abs(d1.Score-0.78*1.3) > 1e-9 {
		t.Errorf("boosted score = %v, want %v", d1.Score, 0.78*1.3)
	}
	if _, ok := d1.GetLabel("boosted"); !ok {
		t.Error("boosted item missing boosted label")
	}
}

func TestBoost_NonMatchingUnchanged(t *testing.T) {
	items := []*core.Item{genreItem("a1", 0.8, "Action")}

	out := Boost(items, "Drama", 1.3)
	if out[0].Score != 0.8 {
		t.Errorf("non-matching score changed: %v", out[0].Score)
	}
	if _, ok := out[0].GetLabel("boosted"); ok {
		t.Error("non-matching item should not carry boosted label")
	}
}

// 偏好类型未设置时是恒等变换：输入顺序原样保留。
func TestBoost_EmptyGenreIsIdentity(t *testing.T) {
	items := []*core.Item{
		genreItem("b", 0.5, "Drama"),
		genreItem("a", 0.9, "Action"), // 故意乱序
	}

	out := Boost(items, "", 1.3)
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "a" {
		t.Errorf("identity pass-through broke input order: %v", out)
	}
}

// 近似同分时，加权让命中偏好类型的影片反超。
func TestBoost_NearTiePromotion(t *testing.T) {
	items := []*core.Item{
		genreItem("a1", 0.801, "Action"),
		genreItem("d1", 0.800, "Drama"),
	}

	out := Boost(items, "Drama", 1.3)
	if out[0].ID != "d1" {
		t.Errorf("near-tie drama movie should overtake, got %s first", out[0].ID)
	}
}

func TestBoost_DefaultFactor(t *testing.T) {
	items := []*core.Item{genreItem("d1", 1.0, "Drama")}

	out := Boost(items, "Drama", 0)
	if math.Abs(out[0].Score-1.3) > 1e-9 {
		t.Errorf("default factor score = %v, want 1.3", out[0].Score)
	}
}

func TestGenreBoost_Node(t *testing.T) {
	profile := core.NewUserProfile("u1")
	profile.PreferredGenre = "Drama"
	rctx := &core.RecommendContext{UserID: "u1", User: profile}

	node := &GenreBoost{}
	items := []*core.Item{
		genreItem("a1", 0.80, "Action"),
		genreItem("d1", 0.78, "Drama"),
	}
	out, err := node.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out[0].ID != "d1" {
		t.Errorf("node should boost by profile genre, got %s first", out[0].ID)
	}
}

func TestGenreBoost_MetaFallback(t *testing.T) {
	it := core.NewItem("d1")
	it.Score = 1.0
	it.Meta["genre"] = "Drama"

	out := Boost([]*core.Item{it}, "Drama", 1.3)
	if math.Abs(out[0].Score-1.3) > 1e-9 {
		t.Errorf("meta genre fallback not applied, score = %v", out[0].Score)
	}
}
