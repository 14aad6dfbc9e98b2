package core

import "time"

// UserProfile 是用户画像：推荐 Pipeline 的全局上下文与决策信号。
//
// 它不是某一个 Node，而是：
//   - 被所有 Node 共享
//   - 驱动召回（冷启动偏好类型）与重排（类型加权）
//
// 维度说明：
//   静态属性（Age / PreferredGenre）  冷启动降级、类型加权
//   类型兴趣（GenreRatings）          内容召回的次级降级信号
//   行为记录（RatedMovies）           已评分影片排除
type UserProfile struct {
	UserID string

	// 静态属性
	Name           string
	Age            int
	PreferredGenre string // 可为空，表示未设置偏好

	// GenreRatings 是用户对各类型的平均打分（由评分历史推导），
	// 协同过滤无相似邻居时作为次级降级信号。
	GenreRatings map[string]float64

	// RatedMovies 是用户已评分的影片 ID 集合
	RatedMovies map[string]float64

	// UpdateTime 画像最后更新时间
	UpdateTime time.Time
}

// NewUserProfile 创建一个新的用户画像。
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		GenreRatings: make(map[string]float64),
		RatedMovies:  make(map[string]float64),
		UpdateTime:   time.Now(),
	}
}

// HasRated 检查用户是否已对某影片评分。
func (p *UserProfile) HasRated(movieID string) bool {
	if p == nil || p.RatedMovies == nil {
		return false
	}
	_, ok := p.RatedMovies[movieID]
	return ok
}

// AddRated 记录一条评分行为。
func (p *UserProfile) AddRated(movieID string, value float64) {
	if p.RatedMovies == nil {
		p.RatedMovies = make(map[string]float64)
	}
	p.RatedMovies[movieID] = value
	p.UpdateTime = time.Now()
}

// SetGenreRating 更新某类型的平均打分。
func (p *UserProfile) SetGenreRating(genre string, avg float64) {
	if p.GenreRatings == nil {
		p.GenreRatings = make(map[string]float64)
	}
	p.GenreRatings[genre] = avg
	p.UpdateTime = time.Now()
}
