package auth

import (
	"testing"

	"github.com/fishcafe/perkportal/internal/model"
)

func TestGate_IsOwner_MatchesConfiguredID(t *testing.T) {
	gate := NewGate("owner-123")

	tests := []struct {
		name   string
		userID string
		want   bool
	}{
		{"一致", "owner-123", true},
		{"不一致", "user-456", false},
		{"空ID", "", false},
		{"前方一致は不可", "owner-1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.IsOwner(tt.userID); got != tt.want {
				t.Errorf("IsOwner(%q) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}

func TestGate_IsOwner_EmptyOwnerID_FailsClosed(t *testing.T) {
	gate := NewGate("")

	for _, id := range []string{"", "owner-123", "anyone"} {
		if gate.IsOwner(id) {
			t.Errorf("IsOwner(%q) = true with empty owner ID, want false", id)
		}
	}
}

func TestGate_IsOwner_NilGate_ReturnsFalse(t *testing.T) {
	var gate *Gate
	if gate.IsOwner("owner-123") {
		t.Error("nil gate should deny")
	}
}

func TestGate_Classify(t *testing.T) {
	gate := NewGate("owner-123")

	tests := []struct {
		name     string
		identity *model.Identity
		want     Access
	}{
		{"未ログイン", nil, AccessAnonymous},
		{"IDなし", &model.Identity{}, AccessAnonymous},
		{"一般ユーザー", &model.Identity{User: model.User{ID: "user-1"}}, AccessAuthenticated},
		{"オーナー", &model.Identity{User: model.User{ID: "owner-123"}}, AccessOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.Classify(tt.identity); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccess_String(t *testing.T) {
	if AccessOwner.String() != "owner" || AccessAuthenticated.String() != "authenticated" || AccessAnonymous.String() != "anonymous" {
		t.Error("unexpected Access names")
	}
}
