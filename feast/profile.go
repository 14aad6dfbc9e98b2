package feast

import (
	"context"

	"github.com/moviekit/moviekit/core"
)

// 用户画像在 Feature Store 中的默认特征名。
const (
	FeatureUserName           = "user_profile:name"
	FeatureUserAge            = "user_profile:age"
	FeatureUserPreferredGenre = "user_profile:preferred_genre"
)

// ProfileLoader 从 Feature Store 加载用户画像的静态属性。
//
// 目录数据库是评分与影片的事实来源，画像属性（偏好类型、年龄）
// 可以下沉到 Feature Store 由离线任务维护；引擎侧只管读取。
// 加载失败或特征缺失时返回空画像而不是错误，推荐链路按冷启动降级。
type ProfileLoader struct {
	Client Client

	// Features 要加载的特征名；为空时使用默认的三个画像特征
	Features []string

	// EntityKey 实体主键名，默认 "user_id"
	EntityKey string
}

// Load 加载单个用户的画像。Client 为空时返回空画像。
func (l *ProfileLoader) Load(ctx context.Context, userID string) (*core.UserProfile, error) {
	profile := core.NewUserProfile(userID)
	if l == nil || l.Client == nil {
		return profile, nil
	}

	features := l.Features
	if len(features) == 0 {
		features = []string{FeatureUserName, FeatureUserAge, FeatureUserPreferredGenre}
	}
	entityKey := l.EntityKey
	if entityKey == "" {
		entityKey = "user_id"
	}

	resp, err := l.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   features,
		EntityRows: []map[string]interface{}{{entityKey: userID}},
	})
	if err != nil || len(resp.FeatureVectors) == 0 {
		// Feature Store 不可用时不阻断推荐，按冷启动处理
		return profile, nil
	}

	values := resp.FeatureVectors[0].Values
	if s, ok := values[FeatureUserName].(string); ok {
		profile.Name = s
	}
	if f, ok := values[FeatureUserAge].(float64); ok {
		profile.Age = int(f)
	}
	if s, ok := values[FeatureUserPreferredGenre].(string); ok {
		profile.PreferredGenre = s
	}
	return profile, nil
}
