package core

import "context"

// Catalog 是用户/影片/评分目录的领域接口（数据访问协作方）。
//
// 设计原则：
//   - 引擎本身不做 I/O：每次推荐请求开始时从 Catalog 取一份快照，
//     之后的整条 Pipeline 是对快照的纯计算
//   - 实现方必须保证返回的数据在计算期间不被并发修改
//     （返回副本，或依赖不可变查询结果）
//
// 实现：
//   - catalog.MemoryCatalog（内存快照，测试/开发/原型）
//   - 持久化实现（PostgreSQL 等）由使用方自行提供
type Catalog interface {
	// GetUser 获取单个用户；不存在时返回 (nil, nil)
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetMovie 获取单部影片；不存在时返回 (nil, nil)
	GetMovie(ctx context.Context, movieID string) (*Movie, error)

	// ListUsers 获取全部用户
	ListUsers(ctx context.Context) ([]*User, error)

	// ListMovies 获取全部影片
	ListMovies(ctx context.Context) ([]*Movie, error)

	// ListRatings 获取全部评分记录（推荐请求的快照来源）
	ListRatings(ctx context.Context) ([]*Rating, error)

	// ListGenres 获取目录中出现过的全部类型（排序后返回，保证确定性）
	ListGenres(ctx context.Context) ([]string, error)

	// UpsertRating 新增或覆盖一条评分（同一 (user, movie) 只保留最新值），
	// 并重算对应影片的聚合评分。返回 true 表示新增，false 表示覆盖。
	UpsertRating(ctx context.Context, r *Rating) (bool, error)
}
