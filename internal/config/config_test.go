package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playful-game/roomsync/internal/emoji"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty api url", func(c *Config) { c.APIBaseURL = "" }},
		{"http websocket scheme", func(c *Config) { c.WSBaseURL = "http://localhost:8080/ws" }},
		{"max below min players", func(c *Config) { c.MinPlayers = 4; c.MaxPlayers = 2 }},
		{"zero min emojis", func(c *Config) { c.MinEmojis = 0 }},
		{"emoji cap swallows the decoy pool", func(c *Config) { c.MaxEmojis = emoji.PoolSize() }},
		{"unknown start permission", func(c *Config) { c.StartPermission = "admin" }},
		{"unknown skip permission", func(c *Config) { c.SkipPermission = "" }},
		{"unknown topic permission", func(c *Config) { c.TopicPermission = "everyone" }},
		{"zero reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }},
		{"negative reconnect attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }},
		{"empty persist dir", func(c *Config) { c.PersistDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPermissionAllows(t *testing.T) {
	tests := []struct {
		perm             Permission
		isHost, isLeader bool
		want             bool
	}{
		{PermissionHost, true, false, true},
		{PermissionHost, false, true, false},
		{PermissionLeader, false, true, true},
		{PermissionLeader, true, false, false},
		{PermissionHostOrLeader, true, false, true},
		{PermissionHostOrLeader, false, true, true},
		{PermissionHostOrLeader, false, false, false},
		{PermissionAnyone, false, false, true},
		{Permission("bogus"), true, true, false},
	}
	for _, tt := range tests {
		got := tt.perm.Allows(tt.isHost, tt.isLeader)
		assert.Equal(t, tt.want, got, "%s host=%v leader=%v", tt.perm, tt.isHost, tt.isLeader)
	}
}
