// Package matrix 提供用户×影片评分矩阵的构建与查询。
//
// 矩阵是每次推荐请求临时构建的派生结构，从不持久化；目录规模小且稀疏，
// 用 map 表达稀疏矩阵即可，不需要引入数值数组库。
package matrix

import (
	"sort"

	"github.com/moviekit/moviekit/core"
)

// Matrix 是稀疏的用户×影片评分视图：userID → movieID → 评分值。
type Matrix map[string]map[string]float64

// Build 由评分记录构建评分矩阵。
//
// 约定：
//   - 引用了不存在用户或影片的评分视为已删除数据，静默跳过，不报错
//   - 同一输入集合无论顺序如何，产出完全一致（(user, movie) 对唯一）
//   - 不做取值校验：评分范围由上层在写入目录前保证
func Build(ratings []*core.Rating, users map[string]*core.User, movies map[string]*core.Movie) Matrix {
	m := make(Matrix, len(users))
	for _, r := range ratings {
		if r == nil {
			continue
		}
		if _, ok := users[r.UserID]; !ok {
			continue
		}
		if _, ok := movies[r.MovieID]; !ok {
			continue
		}
		row := m[r.UserID]
		if row == nil {
			row = make(map[string]float64)
			m[r.UserID] = row
		}
		row[r.MovieID] = r.Value
	}
	return m
}

// Rating 返回用户对影片的评分；未评分时返回 (0, false)。
func (m Matrix) Rating(userID, movieID string) (float64, bool) {
	row, ok := m[userID]
	if !ok {
		return 0, false
	}
	v, ok := row[movieID]
	return v, ok
}

// UserRatings 返回用户的全部评分（原始 map，调用方不得修改）。
func (m Matrix) UserRatings(userID string) map[string]float64 {
	return m[userID]
}

// HasRatings 检查用户是否有至少一条评分。
func (m Matrix) HasRatings(userID string) bool {
	return len(m[userID]) > 0
}

// Users 返回矩阵中出现的全部用户 ID（升序，保证遍历确定性）。
func (m Matrix) Users() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
