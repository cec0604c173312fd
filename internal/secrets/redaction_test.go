package secrets_test

import (
	"testing"

	"github.com/gxo-labs/seltrace/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracker() *secrets.SecretTracker {
	tracker := secrets.NewSecretTracker()
	tracker.Add("hunter2")
	return tracker
}

func TestRedactTrackedSecrets_SendKeysParams(t *testing.T) {
	tracker := setupTracker()
	params := map[string]interface{}{
		"id":    "el-1",
		"text":  "hunter2",
		"value": []string{"h", "u", "hunter2"},
	}

	redacted, wasRedacted := secrets.RedactTrackedSecrets(params, tracker)
	require.True(t, wasRedacted)
	m := redacted.(map[string]interface{})
	assert.Equal(t, "el-1", m["id"])
	assert.Equal(t, secrets.RedactedSecretValue, m["text"])
	assert.Equal(t, []string{"h", "u", secrets.RedactedSecretValue}, m["value"])
	assert.Equal(t, "hunter2", params["text"], "the input map is not modified")
}

func TestRedactTrackedSecrets_ScriptArgs(t *testing.T) {
	tracker := setupTracker()
	params := map[string]interface{}{
		"script": "arguments[0].value = arguments[1]",
		"args":   []interface{}{map[string]interface{}{"element": "el-1"}, "login:hunter2", 3},
	}

	redacted, wasRedacted := secrets.RedactTrackedSecrets(params, tracker)
	require.True(t, wasRedacted)
	args := redacted.(map[string]interface{})["args"].([]interface{})
	assert.Equal(t, map[string]interface{}{"element": "el-1"}, args[0])
	assert.Equal(t, secrets.RedactedSecretValue, args[1], "values embedding a secret are redacted")
	assert.Equal(t, 3, args[2])
}

func TestRedactTrackedSecrets_NothingTracked(t *testing.T) {
	params := map[string]interface{}{"url": "https://example.test", "n": 1}

	redacted, wasRedacted := secrets.RedactTrackedSecrets(params, secrets.NewSecretTracker())
	assert.False(t, wasRedacted)
	assert.Equal(t, params, redacted)

	redacted, wasRedacted = secrets.RedactTrackedSecrets(params, nil)
	assert.False(t, wasRedacted)
	assert.Equal(t, params, redacted)

	redacted, wasRedacted = secrets.RedactTrackedSecrets(nil, setupTracker())
	assert.False(t, wasRedacted)
	assert.Nil(t, redacted)
}
