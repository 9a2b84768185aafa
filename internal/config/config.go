// Package config holds the tunables for a room session: endpoints,
// participant bounds, reconnect policy and persistence paths.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/playful-game/roomsync/internal/emoji"
)

// Permission decides which participants may trigger a privileged action.
type Permission string

const (
	PermissionHost         Permission = "host"
	PermissionLeader       Permission = "leader"
	PermissionHostOrLeader Permission = "host-or-leader"
	PermissionAnyone       Permission = "anyone"
)

func (p Permission) valid() bool {
	switch p {
	case PermissionHost, PermissionLeader, PermissionHostOrLeader, PermissionAnyone:
		return true
	}
	return false
}

// Allows reports whether a participant with the given standing passes.
func (p Permission) Allows(isHost, isLeader bool) bool {
	switch p {
	case PermissionHost:
		return isHost
	case PermissionLeader:
		return isLeader
	case PermissionHostOrLeader:
		return isHost || isLeader
	case PermissionAnyone:
		return true
	}
	return false
}

type Config struct {
	APIBaseURL string
	WSBaseURL  string

	MinPlayers int
	MaxPlayers int
	MinEmojis  int
	MaxEmojis  int

	StartPermission Permission
	SkipPermission  Permission
	TopicPermission Permission

	DialTimeout          time.Duration
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	PersistDir      string
	PersistDebounce time.Duration
}

// Default returns the settings matching the reference deployment.
func Default() Config {
	return Config{
		APIBaseURL:           "http://localhost:8080",
		WSBaseURL:            "ws://localhost:8080",
		MinPlayers:           3,
		MaxPlayers:           6,
		MinEmojis:            3,
		MaxEmojis:            7,
		StartPermission:      PermissionHost,
		SkipPermission:       PermissionHostOrLeader,
		TopicPermission:      PermissionHostOrLeader,
		DialTimeout:          10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		PersistDir:           defaultPersistDir(),
		PersistDebounce:      500 * time.Millisecond,
	}
}

func defaultPersistDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "roomsync")
	}
	return filepath.Join(os.TempDir(), "roomsync")
}

func (c *Config) Validate() error {
	if _, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
		return fmt.Errorf("invalid api base url: %q", c.APIBaseURL)
	}
	ws, err := url.Parse(c.WSBaseURL)
	if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
		return fmt.Errorf("invalid websocket url (scheme must be ws or wss): %q", c.WSBaseURL)
	}
	if c.MinPlayers < 1 || c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("invalid player bounds: min %d, max %d", c.MinPlayers, c.MaxPlayers)
	}
	if c.MinEmojis < 1 || c.MaxEmojis < c.MinEmojis {
		return fmt.Errorf("invalid emoji bounds: min %d, max %d", c.MinEmojis, c.MaxEmojis)
	}
	// A selection spanning the whole decoy pool would leave no candidate
	// the injector can guarantee is absent from it.
	if c.MaxEmojis >= emoji.PoolSize() {
		return fmt.Errorf("max emojis %d must stay below the decoy pool size %d", c.MaxEmojis, emoji.PoolSize())
	}
	if !c.StartPermission.valid() {
		return fmt.Errorf("invalid start permission: %q", c.StartPermission)
	}
	if !c.SkipPermission.valid() {
		return fmt.Errorf("invalid skip permission: %q", c.SkipPermission)
	}
	if !c.TopicPermission.valid() {
		return fmt.Errorf("invalid topic permission: %q", c.TopicPermission)
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("max reconnect attempts must not be negative")
	}
	if c.PersistDir == "" {
		return errors.New("persist dir must be set")
	}
	if c.PersistDebounce < 0 {
		return errors.New("persist debounce must not be negative")
	}
	return nil
}
