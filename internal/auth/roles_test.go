package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, name := range RoleNames() {
		r, ok := ParseRole(name)
		assert.True(t, ok)
		assert.Equal(t, name, string(r))
	}
	_, ok := ParseRole("SUPERVISOR")
	assert.False(t, ok)
	_, ok = ParseRole("admin")
	assert.False(t, ok, "role names are case sensitive")
}

func TestHighest(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  Role
	}{
		{"empty set defaults to USER", nil, RoleUser},
		{"single role", []string{"MANAGER"}, RoleManager},
		{"owner wins", []string{"USER", "OWNER", "MANAGER"}, RoleOwner},
		{"admin over manager", []string{"MANAGER", "ADMIN"}, RoleAdmin},
		{"unknown names ignored", []string{"WIZARD", "USER"}, RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highest(tt.roles))
		})
	}
}

func TestCanAssign(t *testing.T) {
	tests := []struct {
		name    string
		actor   Role
		target  Role
		newRole Role
		want    bool
	}{
		{"owner promotes user to admin", RoleOwner, RoleUser, RoleAdmin, true},
		{"owner demotes admin", RoleOwner, RoleAdmin, RoleUser, true},
		{"owner promotes to owner", RoleOwner, RoleManager, RoleOwner, true},
		{"owner cannot touch another owner", RoleOwner, RoleOwner, RoleUser, false},
		{"admin sets manager on user", RoleAdmin, RoleUser, RoleManager, true},
		{"admin sets user on manager", RoleAdmin, RoleManager, RoleUser, true},
		{"admin cannot grant admin", RoleAdmin, RoleUser, RoleAdmin, false},
		{"admin cannot grant owner", RoleAdmin, RoleUser, RoleOwner, false},
		{"admin cannot touch admin", RoleAdmin, RoleAdmin, RoleUser, false},
		{"admin cannot touch owner", RoleAdmin, RoleOwner, RoleUser, false},
		{"manager cannot assign", RoleManager, RoleUser, RoleUser, false},
		{"user cannot assign", RoleUser, RoleUser, RoleManager, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAssign(tt.actor, tt.target, tt.newRole))
		})
	}
}
