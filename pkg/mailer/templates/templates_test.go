package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWelcome(t *testing.T) {
	subject, text, html, err := Render("welcome", map[string]any{"Name": "alice"})
	require.NoError(t, err)
	assert.Contains(t, subject, "alice")
	assert.Contains(t, text, "alice")
	assert.Contains(t, html, "alice")
	assert.Contains(t, html, "<html>")
}

func TestRenderLoginNotification(t *testing.T) {
	t.Run("with ip", func(t *testing.T) {
		_, text, html, err := Render("login_notification", map[string]any{"Name": "alice", "IP": "203.0.113.7"})
		require.NoError(t, err)
		assert.Contains(t, text, "203.0.113.7")
		assert.Contains(t, html, "203.0.113.7")
	})

	t.Run("without ip", func(t *testing.T) {
		_, text, _, err := Render("login_notification", map[string]any{"Name": "alice"})
		require.NoError(t, err)
		assert.NotContains(t, text, "IP address")
	})
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("no_such_template", nil)
	assert.Error(t, err)
}
