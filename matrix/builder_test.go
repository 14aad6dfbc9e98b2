package matrix

import (
	"reflect"
	"testing"

	"github.com/moviekit/moviekit/core"
)

func users(ids ...string) map[string]*core.User {
	m := make(map[string]*core.User, len(ids))
	for _, id := range ids {
		m[id] = &core.User{ID: id}
	}
	return m
}

func movies(ids ...string) map[string]*core.Movie {
	m := make(map[string]*core.Movie, len(ids))
	for _, id := range ids {
		m[id] = &core.Movie{ID: id}
	}
	return m
}

func TestBuild(t *testing.T) {
	ratings := []*core.Rating{
		{UserID: "u1", MovieID: "m1", Value: 5},
		{UserID: "u1", MovieID: "m2", Value: 3},
		{UserID: "u2", MovieID: "m1", Value: 4},
	}
	m := Build(ratings, users("u1", "u2"), movies("m1", "m2"))

	if v, ok := m.Rating("u1", "m1"); !ok || v != 5 {
		t.Errorf("Rating(u1, m1) = %v, %v, want 5, true", v, ok)
	}
	if v, ok := m.Rating("u2", "m1"); !ok || v != 4 {
		t.Errorf("Rating(u2, m1) = %v, %v, want 4, true", v, ok)
	}
	if _, ok := m.Rating("u2", "m2"); ok {
		t.Error("Rating(u2, m2) should not exist")
	}
}

func TestBuild_SkipsDanglingReferences(t *testing.T) {
	ratings := []*core.Rating{
		{UserID: "u1", MovieID: "m1", Value: 5},
		{UserID: "ghost", MovieID: "m1", Value: 5}, // 用户不存在
		{UserID: "u1", MovieID: "gone", Value: 5},  // 影片不存在
		nil,
	}
	m := Build(ratings, users("u1"), movies("m1"))

	if len(m) != 1 {
		t.Fatalf("expected 1 user row, got %d", len(m))
	}
	if len(m.UserRatings("u1")) != 1 {
		t.Errorf("expected 1 rating for u1, got %d", len(m.UserRatings("u1")))
	}
}

func TestBuild_OrderIndependent(t *testing.T) {
	a := []*core.Rating{
		{UserID: "u1", MovieID: "m1", Value: 5},
		{UserID: "u2", MovieID: "m2", Value: 3},
		{UserID: "u1", MovieID: "m2", Value: 4},
	}
	b := []*core.Rating{a[2], a[0], a[1]}

	us, ms := users("u1", "u2"), movies("m1", "m2")
	if !reflect.DeepEqual(Build(a, us, ms), Build(b, us, ms)) {
		t.Error("matrices built from reordered ratings differ")
	}
}

func TestMatrix_Users_Sorted(t *testing.T) {
	ratings := []*core.Rating{
		{UserID: "u3", MovieID: "m1", Value: 1},
		{UserID: "u1", MovieID: "m1", Value: 2},
		{UserID: "u2", MovieID: "m1", Value: 3},
	}
	m := Build(ratings, users("u1", "u2", "u3"), movies("m1"))

	got := m.Users()
	want := []string{"u1", "u2", "u3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Users() = %v, want %v", got, want)
	}
}

func TestMatrix_HasRatings(t *testing.T) {
	m := Build([]*core.Rating{{UserID: "u1", MovieID: "m1", Value: 5}}, users("u1", "u2"), movies("m1"))

	if !m.HasRatings("u1") {
		t.Error("u1 should have ratings")
	}
	if m.HasRatings("u2") {
		t.Error("u2 should not have ratings")
	}
}
