//go:build !integration

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/safeplate/safescan/internal/config"
	"github.com/safeplate/safescan/internal/session"
)

func TestSessionConfig_FromConfiguredKnobs(t *testing.T) {
	got := sessionConfig(config.SessionConfig{
		DebounceMillis:    250,
		CooldownMillis:    1500,
		LookupTimeoutSecs: 4,
	})

	assert.Equal(t, 250*time.Millisecond, got.Debounce)
	assert.Equal(t, 1500*time.Millisecond, got.Cooldown)
	assert.Equal(t, 4*time.Second, got.LookupTimeout)
}

func TestSessionConfig_ZeroFallsBackToControllerDefaults(t *testing.T) {
	ctl := session.New(stdinCapability{}, nil, "default", sessionConfig(config.SessionConfig{}))
	def := session.DefaultConfig()

	assert.Equal(t, def.Debounce, ctl.Config().Debounce)
	assert.Equal(t, def.Cooldown, ctl.Config().Cooldown)
	assert.Equal(t, def.LookupTimeout, ctl.Config().LookupTimeout)
}
