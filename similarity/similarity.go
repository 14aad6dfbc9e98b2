// Package similarity 提供推荐引擎的相似度计算：
// 用户相似度（评分向量交集上的余弦）与影片内容相似度（类型 one-hot + 归一化聚合评分）。
//
// 数值契约：cosine(a,b) = dot(a,b) / (‖a‖·‖b‖)；任一向量模为 0 时相似度定义为 0，
// 不产生 NaN，也不报错——数值退化是正常输入形态，不是故障。
package similarity

import (
	"math"

	"github.com/moviekit/moviekit/core"
	"github.com/moviekit/moviekit/matrix"
)

// Cosine 计算两个等长向量的余弦相似度。
// 长度不一致或任一模为 0 时返回 0。
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// User 计算两个用户的相似度：限定在双方都评过分的影片交集上做余弦。
// 交集为空时相似度定义为 0（文档化的边界策略，不是异常）。
// 满足对称性：User(m, a, b) == User(m, b, a)。
func User(m matrix.Matrix, userA, userB string) float64 {
	ra := m.UserRatings(userA)
	rb := m.UserRatings(userB)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// 交集遍历较小的一侧
	if len(rb) < len(ra) {
		ra, rb = rb, ra
	}
	va := make([]float64, 0, len(ra))
	vb := make([]float64, 0, len(ra))
	for movieID, scoreA := range ra {
		if scoreB, ok := rb[movieID]; ok {
			va = append(va, scoreA)
			vb = append(vb, scoreB)
		}
	}
	if len(va) == 0 {
		return 0
	}
	return Cosine(va, vb)
}

// ContentVector 构建影片的内容特征向量：
// 类型 one-hot 编码（维度 = genres 长度，恰好一个 1）拼接归一化聚合评分（rating / 5.0）。
// genres 必须是排序后的全类型列表，保证所有影片的向量维度对齐。
func ContentVector(mv *core.Movie, genres []string) []float64 {
	vec := make([]float64, len(genres)+1)
	for i, g := range genres {
		if mv.Genre == g {
			vec[i] = 1
			break
		}
	}
	vec[len(genres)] = mv.Rating / 5.0
	return vec
}

// Movie 计算两部影片的内容相似度。
// 同类型且聚合评分相同的两部影片相似度为 1.0；
// 类型不同的影片 one-hot 维度正交，相似度严格小于 1，由评分标量维度托底。
func Movie(a, b *core.Movie, genres []string) float64 {
	if a == nil || b == nil {
		return 0
	}
	return Cosine(ContentVector(a, genres), ContentVector(b, genres))
}
