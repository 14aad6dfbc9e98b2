// Package engine 是推荐引擎的门面：把目录快照、评分矩阵、召回/过滤/重排
// Pipeline 组装成面向调用方的操作集合。
//
// 引擎本身无状态：每次请求从 Catalog 取一份快照，之后的整条链路是
// 对快照的纯计算，同一引擎实例可被多请求并发使用。
package engine

import (
	"context"
	"sort"

	"github.com/moviekit/moviekit/catalog"
	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/feast"
	"github.com/moviekit/moviekit/matrix"
)

// 引擎默认参数。
const (
	DefaultK    = 5  // 协同过滤相似用户数
	DefaultTopN = 10 // 默认返回条数
)

// Engine 是推荐引擎。字段为零值时使用默认值。
type Engine struct {
	// Catalog 用户/影片/评分目录（必填）
	Catalog core.Catalog

	// Store 热门榜单缓存（可选）；配置后热门召回走榜单快路径
	Store core.KeyValueStore

	// Profiles 画像加载器（可选）；目录缺失偏好类型时从 Feature Store 补齐
	Profiles *feast.ProfileLoader

	// K 协同过滤相似用户数，<=0 时默认 5
	K int

	// TopN 默认返回条数，<=0 时默认 10
	TopN int

	// BoostFactor 偏好类型加权系数，<=0 时默认 1.3
	BoostFactor float64

	// MinRatings 热门榜单进榜所需最少评分条数，<=0 时默认 3
	MinRatings int
}

// New 创建推荐引擎。
func New(c core.Catalog) *Engine {
	return &Engine{Catalog: c}
}

func (e *Engine) k() int {
	if e.K <= 0 {
		return DefaultK
	}
	return e.K
}

func (e *Engine) topN() int {
	if e.TopN <= 0 {
		return DefaultTopN
	}
	return e.TopN
}

// snapshot 是一次请求的目录快照与派生结构。
type snapshot struct {
	users   map[string]*core.User
	movies  map[string]*core.Movie
	ratings []*core.Rating
	genres  []string
	matrix  matrix.Matrix
}

func (e *Engine) snapshot(ctx context.Context) (*snapshot, error) {
	users, err := e.Catalog.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	movies, err := e.Catalog.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	ratings, err := e.Catalog.ListRatings(ctx)
	if err != nil {
		return nil, err
	}
	genres, err := e.Catalog.ListGenres(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		users:   make(map[string]*core.User, len(users)),
		movies:  make(map[string]*core.Movie, len(movies)),
		ratings: ratings,
		genres:  genres,
	}
	for _, u := range users {
		snap.users[u.ID] = u
	}
	for _, m := range movies {
		snap.movies[m.ID] = m
	}
	snap.matrix = matrix.Build(ratings, snap.users, snap.movies)
	return snap, nil
}

// buildProfile 由目录快照构建用户画像；目录缺失偏好类型时从 Feature Store 补齐。
func (e *Engine) buildProfile(ctx context.Context, user *core.User, snap *snapshot) *core.UserProfile {
	profile := core.NewUserProfile(user.ID)
	profile.Name = user.Name
	profile.Age = user.Age
	profile.PreferredGenre = user.PreferredGenre

	genreSum := make(map[string]float64)
	genreCnt := make(map[string]int)
	for movieID, rating := range snap.matrix.UserRatings(user.ID) {
		profile.RatedMovies[movieID] = rating
		if mv, ok := snap.movies[movieID]; ok {
			genreSum[mv.Genre] += rating
			genreCnt[mv.Genre]++
		}
	}
	for g, cnt := range genreCnt {
		profile.GenreRatings[g] = genreSum[g] / float64(cnt)
	}

	if profile.PreferredGenre == "" && e.Profiles != nil {
		if remote, err := e.Profiles.Load(ctx, user.ID); err == nil && remote != nil {
			profile.PreferredGenre = remote.PreferredGenre
			if profile.Age == 0 {
				profile.Age = remote.Age
			}
		}
	}
	return profile
}

func (e *Engine) newRecommendContext(ctx context.Context, user *core.User, snap *snapshot, strategy core.Strategy) *core.RecommendContext {
	return &core.RecommendContext{
		UserID:   user.ID,
		Strategy: strategy,
		User:     e.buildProfile(ctx, user, snap),
	}
}

// BuildMatrix 返回当前目录的评分矩阵快照。
func (e *Engine) BuildMatrix(ctx context.Context) (matrix.Matrix, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.matrix, nil
}

// PopularMovies 返回热门榜单：按平均评分降序，同分按影片 ID 升序，
// 评分条数不足 MinRatings 的影片不进榜。genre 为空表示全局榜单。
func (e *Engine) PopularMovies(ctx context.Context, genre string, n int) ([]*catalog.PopularEntry, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	movies := make([]*core.Movie, 0, len(snap.movies))
	for _, mv := range snap.movies {
		movies = append(movies, mv)
	}
	idx := catalog.BuildPopularityIndex(movies, snap.ratings, e.MinRatings)
	if genre == "" {
		return idx.TopN(n), nil
	}
	return idx.TopNByGenre(genre, n), nil
}

// SyncPopular 重算热门榜单并写入 Store（全局榜与各类型榜）。
// 未配置 Store 时直接返回。
func (e *Engine) SyncPopular(ctx context.Context) error {
	if e.Store == nil {
		return nil
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	movies := make([]*core.Movie, 0, len(snap.movies))
	for _, mv := range snap.movies {
		movies = append(movies, mv)
	}
	idx := catalog.BuildPopularityIndex(movies, snap.ratings, e.MinRatings)
	return idx.SyncToStore(ctx, e.Store)
}

// MoviesByGenre 返回指定类型的全部影片（按聚合评分降序，同分按 ID 升序）。
func (e *Engine) MoviesByGenre(ctx context.Context, genre string) ([]*core.Movie, error) {
	movies, err := e.Catalog.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Movie, 0)
	for _, mv := range movies {
		if mv.Genre == genre {
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UserRatings 返回用户的全部评分记录（按分值降序，同分按影片 ID 升序）。
// 用户不存在时返回 NOT_FOUND。
func (e *Engine) UserRatings(ctx context.Context, userID string) ([]*core.Rating, error) {
	user, err := e.Catalog.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotFound, "engine: user not found: "+userID)
	}

	all, err := e.Catalog.ListRatings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Rating, 0)
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}

// RateMovie 写入一条评分（同一 (user, movie) 覆盖旧值）并触发榜单同步。
// 评分取值必须落在 [1,5]。返回 true 表示新增，false 表示覆盖。
func (e *Engine) RateMovie(ctx context.Context, userID, movieID string, value float64, comment string) (bool, error) {
	if value < 1 || value > 5 {
		return false, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: rating must be in [1,5]")
	}
	isNew, err := e.Catalog.UpsertRating(ctx, &core.Rating{
		UserID:  userID,
		MovieID: movieID,
		Value:   value,
		Comment: comment,
	})
	if err != nil {
		return false, err
	}
	if e.Store != nil {
		// 榜单同步失败不回滚评分，下次写入或定时任务会再次同步
		_ = e.SyncPopular(ctx)
	}
	return isNew, nil
}
