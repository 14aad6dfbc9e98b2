package catalog

import (
	"context"
	"sort"

	"github.com/moviekit/moviekit/core"
)

// DefaultMinRatings 进入热门榜单所需的最少评分条数。
// 样本太少的均分不可信，一条五星就能把新片顶到榜首。
const DefaultMinRatings = 3

// PopularKey 返回热门榜单在 KeyValueStore 中的 key。
// genre 为空表示全局榜单。
func PopularKey(genre string) string {
	if genre == "" {
		return "popular:all"
	}
	return "popular:genre:" + genre
}

// PopularEntry 是热门榜单中的一项。
type PopularEntry struct {
	Movie       *core.Movie
	AvgRating   float64
	RatingCount int
}

// PopularityIndex 从评分记录离线计算热门榜单：
// 按平均评分降序，同分按影片 ID 升序，评分条数不足 MinRatings 的影片不进榜。
//
// 两种消费方式：
//   - TopN：直接读取计算结果（单机/测试）
//   - SyncToStore：把全局榜与分类型榜写入 KeyValueStore，
//     供 recall.Popular 的快路径消费（多实例共享）
type PopularityIndex struct {
	// MinRatings 进榜所需的最少评分条数，<=0 时默认 3
	MinRatings int

	entries []*PopularEntry
	byGenre map[string][]*PopularEntry
}

// BuildPopularityIndex 从目录快照构建榜单。
// 聚合评分在这里独立重算（均值），不依赖 Movie.Rating 字段是否新鲜。
func BuildPopularityIndex(movies []*core.Movie, ratings []*core.Rating, minRatings int) *PopularityIndex {
	if minRatings <= 0 {
		minRatings = DefaultMinRatings
	}

	sums := make(map[string]float64, len(movies))
	counts := make(map[string]int, len(movies))
	for _, r := range ratings {
		if r == nil {
			continue
		}
		sums[r.MovieID] += r.Value
		counts[r.MovieID]++
	}

	idx := &PopularityIndex{
		MinRatings: minRatings,
		byGenre:    make(map[string][]*PopularEntry),
	}
	for _, mv := range movies {
		if mv == nil {
			continue
		}
		n := counts[mv.ID]
		if n < minRatings {
			continue
		}
		idx.entries = append(idx.entries, &PopularEntry{
			Movie:       mv,
			AvgRating:   sums[mv.ID] / float64(n),
			RatingCount: n,
		})
	}

	sort.Slice(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if a.AvgRating != b.AvgRating {
			return a.AvgRating > b.AvgRating
		}
		return a.Movie.ID < b.Movie.ID
	})
	for _, e := range idx.entries {
		idx.byGenre[e.Movie.Genre] = append(idx.byGenre[e.Movie.Genre], e)
	}
	return idx
}

// TopN 返回全局榜单前 n 项。n <= 0 表示全部。
func (idx *PopularityIndex) TopN(n int) []*PopularEntry {
	return truncate(idx.entries, n)
}

// TopNByGenre 返回指定类型榜单前 n 项。
func (idx *PopularityIndex) TopNByGenre(genre string, n int) []*PopularEntry {
	return truncate(idx.byGenre[genre], n)
}

func truncate(entries []*PopularEntry, n int) []*PopularEntry {
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	out := make([]*PopularEntry, len(entries))
	copy(out, entries)
	return out
}

// SyncToStore 把榜单写入 KeyValueStore：
// 全局榜写 "popular:all"，每个类型写 "popular:genre:<g>"。
// zset 分数是平均评分，排序语义由 ZRange（降序）保证。
func (idx *PopularityIndex) SyncToStore(ctx context.Context, kv core.KeyValueStore) error {
	for _, e := range idx.entries {
		if err := kv.ZAdd(ctx, PopularKey(""), e.AvgRating, e.Movie.ID); err != nil {
			return err
		}
		if err := kv.ZAdd(ctx, PopularKey(e.Movie.Genre), e.AvgRating, e.Movie.ID); err != nil {
			return err
		}
	}
	return nil
}
