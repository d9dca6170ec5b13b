package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthAction_IsValid(t *testing.T) {
	assert.True(t, AuthActionLogin.IsValid())
	assert.True(t, AuthActionLogout.IsValid())
	assert.False(t, AuthAction("").IsValid())
	assert.False(t, AuthAction("refresh").IsValid())
}

func TestAuthEvent_TableName(t *testing.T) {
	assert.Equal(t, "auth_events", AuthEvent{}.TableName())
}

func TestAuthEvent_JSONFieldNames(t *testing.T) {
	event := AuthEvent{
		ID:        uuid.New(),
		Action:    AuthActionLogin,
		Subject:   "u1",
		IPAddress: "203.0.113.7",
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "login", raw["action"])
	assert.Equal(t, "203.0.113.7", raw["ip_address"])
	assert.Contains(t, raw, "request_id")
}
