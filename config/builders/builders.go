package builders

import (
	"fmt"
	"sync"
	"time"

	"github.com/moviekit/moviekit/config"
	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/filter"
	"github.com/moviekit/moviekit/pipeline"
	"github.com/moviekit/moviekit/pkg/conv"
	"github.com/moviekit/moviekit/recall"
	"github.com/moviekit/moviekit/rerank"
)

func init() {
	config.Register("recall.popular", BuildPopularNode)
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rerank.genre_boost", BuildGenreBoostNode)
	config.Register("rerank.topn", BuildTopNNode)
}

// 配置文件表达不了运行期依赖（目录快照、榜单缓存），
// 使用配置驱动前先 Bind 注入；未注入时召回节点走空快照（返回空结果）。
var (
	bindMu     sync.RWMutex
	boundMovie map[string]*core.Movie
	boundStore core.KeyValueStore
)

// Bind 注入配置驱动的 Pipeline 所需的运行期依赖。
func Bind(movies map[string]*core.Movie, kv core.KeyValueStore) {
	bindMu.Lock()
	defer bindMu.Unlock()
	boundMovie = movies
	boundStore = kv
}

func bound() (map[string]*core.Movie, core.KeyValueStore) {
	bindMu.RLock()
	defer bindMu.RUnlock()
	return boundMovie, boundStore
}

func BuildPopularNode(cfg map[string]interface{}) (pipeline.Node, error) {
	movies, kv := bound()
	return &recall.Popular{
		Movies: movies,
		Store:  kv,
		Genre:  conv.ConfigGet(cfg, "genre", ""),
		TopN:   int(conv.ConfigGetInt64(cfg, "top_n", 0)),
	}, nil
}

func BuildFanoutNode(cfg map[string]interface{}) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	movies, kv := bound()

	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]interface{})
		if !ok {
			continue
		}
		sourceType := conv.ConfigGet(sourceMap, "type", "")
		switch sourceType {
		case "popular":
			sources = append(sources, &recall.Popular{
				Movies: movies,
				Store:  kv,
				Genre:  conv.ConfigGet(sourceMap, "genre", ""),
				TopN:   int(conv.ConfigGetInt64(sourceMap, "top_n", 0)),
			})
		default:
			return nil, fmt.Errorf("unknown source type: %s", sourceType)
		}
	}

	fanout := &recall.Fanout{Sources: sources}
	if sec := conv.ConfigGetInt64(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt64(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = int(n)
	}
	switch conv.ConfigGet(cfg, "merge_strategy", "") {
	case "priority":
		fanout.MergeStrategy = &recall.PriorityMergeStrategy{}
	case "union":
		fanout.MergeStrategy = &recall.UnionMergeStrategy{}
	default:
		fanout.MergeStrategy = &recall.FirstMergeStrategy{}
	}
	return fanout, nil
}

func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "rated":
			// 配置只能给静态排除名单；运行期评分快照走 rctx.User
			ids := conv.SliceAnyToString(filterMap["movie_ids"])
			ratings := make(map[string]float64, len(ids))
			for _, id := range ids {
				ratings[id] = 0
			}
			filters = append(filters, filter.NewRatedFilter(ratings))
		case "rule":
			expr := conv.ConfigGet(filterMap, "expr", "")
			if expr == "" {
				return nil, fmt.Errorf("rule filter: expr not found")
			}
			filters = append(filters, filter.NewRuleFilter(expr))
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func BuildGenreBoostNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.GenreBoost{
		Genre:  conv.ConfigGet(cfg, "genre", ""),
		Factor: conv.ConfigGetFloat64(cfg, "factor", 0),
	}, nil
}

func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{
		N: int(conv.ConfigGetInt64(cfg, "n", 0)),
	}, nil
}
