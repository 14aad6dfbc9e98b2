package core

// Movie 是影片的领域模型。
// Rating 是聚合评分（由全部用户评分重算得出），算法只消费 Genre 与 Rating；
// Description / PosterURL / TrailerURL 对算法是不透明载荷，仅透传给展示层。
type Movie struct {
	ID          string
	Title       string
	Genre       string // 单值，取自目录的固定类型集合
	Year        int
	Rating      float64 // 聚合评分，范围 [0,5]，无评分时为 0
	Description string
	PosterURL   string
	TrailerURL  string
}

// User 是用户的领域模型。
// PreferredGenre 可以为空（未设置偏好时，降级策略退回全局热门）。
type User struct {
	ID             string
	Name           string
	Age            int
	PreferredGenre string
}

// Rating 是一条用户对影片的评分记录。
// (UserID, MovieID) 唯一；重复评分覆盖旧值而不是新增记录。
type Rating struct {
	UserID  string
	MovieID string
	Value   float64 // 闭区间 [1,5]，由上层校验后进入引擎
	Comment string
}
