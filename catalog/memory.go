package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/moviekit/moviekit/core"
)

// MemoryCatalog 是内存实现的 Catalog，用于测试/开发/单机部署。
//
// 并发约定：所有读操作返回副本，调用方拿到的快照不会被后续写入修改。
// 写入（UpsertRating）持锁重算影片聚合评分，保证读侧永远看到一致的
// (评分记录, 聚合评分) 组合。
type MemoryCatalog struct {
	mu      sync.RWMutex
	users   map[string]*core.User
	movies  map[string]*core.Movie
	ratings map[ratingKey]*core.Rating
}

type ratingKey struct {
	userID  string
	movieID string
}

// NewMemoryCatalog 用初始数据构造目录。初始评分按 Upsert 语义载入：
// 重复的 (user, movie) 后写覆盖先写，载入完成后统一重算聚合评分。
func NewMemoryCatalog(users []*core.User, movies []*core.Movie, ratings []*core.Rating) *MemoryCatalog {
	c := &MemoryCatalog{
		users:   make(map[string]*core.User, len(users)),
		movies:  make(map[string]*core.Movie, len(movies)),
		ratings: make(map[ratingKey]*core.Rating, len(ratings)),
	}
	for _, u := range users {
		if u == nil {
			continue
		}
		cp := *u
		c.users[u.ID] = &cp
	}
	for _, m := range movies {
		if m == nil {
			continue
		}
		cp := *m
		c.movies[m.ID] = &cp
	}
	for _, r := range ratings {
		if r == nil {
			continue
		}
		cp := *r
		c.ratings[ratingKey{userID: r.UserID, movieID: r.MovieID}] = &cp
	}
	for id := range c.movies {
		c.recomputeAggregate(id)
	}
	return c
}

var _ core.Catalog = (*MemoryCatalog)(nil)

func (c *MemoryCatalog) GetUser(_ context.Context, userID string) (*core.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (c *MemoryCatalog) GetMovie(_ context.Context, movieID string) (*core.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.movies[movieID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (c *MemoryCatalog) ListUsers(_ context.Context) ([]*core.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*core.User, 0, len(c.users))
	for _, u := range c.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) ListMovies(_ context.Context) ([]*core.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*core.Movie, 0, len(c.movies))
	for _, m := range c.movies {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) ListRatings(_ context.Context) ([]*core.Rating, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*core.Rating, 0, len(c.ratings))
	for _, r := range c.ratings {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}

func (c *MemoryCatalog) ListGenres(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, m := range c.movies {
		if m.Genre != "" {
			seen[m.Genre] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

// UpsertRating 新增或覆盖一条评分并重算影片聚合评分。
// 用户或影片不存在时返回 NOT_FOUND 领域错误。
func (c *MemoryCatalog) UpsertRating(_ context.Context, r *core.Rating) (bool, error) {
	if r == nil {
		return false, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: nil rating")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[r.UserID]; !ok {
		return false, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "catalog: user not found: "+r.UserID)
	}
	if _, ok := c.movies[r.MovieID]; !ok {
		return false, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "catalog: movie not found: "+r.MovieID)
	}

	key := ratingKey{userID: r.UserID, movieID: r.MovieID}
	_, exists := c.ratings[key]
	cp := *r
	c.ratings[key] = &cp
	c.recomputeAggregate(r.MovieID)
	return !exists, nil
}

// recomputeAggregate 重算单部影片的聚合评分（调用方持写锁）。
// 无评分时聚合评分归零。
func (c *MemoryCatalog) recomputeAggregate(movieID string) {
	m, ok := c.movies[movieID]
	if !ok {
		return
	}
	var sum float64
	var n int
	for key, r := range c.ratings {
		if key.movieID == movieID {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		m.Rating = 0
		return
	}
	m.Rating = sum / float64(n)
}
