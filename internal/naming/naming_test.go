package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleCase(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single word", "production", "Production"},
		{"already cased", "Production", "Production"},
		{"all caps", "PRODUCTION", "Production"},
		{"two words", "user-acc test", "User-acc Test"},
		{"internal punctuation preserved", "user-acc", "User-acc"},
		{"extra whitespace collapsed", "  staging   env ", "Staging Env"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleCase(tt.input))
		})
	}
}

func TestTitleCase_Idempotent(t *testing.T) {
	inputs := []string{"production", "user-acc test", "STAGING", "a b c", ""}
	for _, in := range inputs {
		once := TitleCase(in)
		assert.Equal(t, once, TitleCase(once), "TitleCase must be idempotent for %q", in)
	}
}

func TestResource(t *testing.T) {
	assert.Equal(t, "staging-cluster", Resource("staging", "cluster"))
	assert.Equal(t, "production-service", Resource("production", "service"))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "Staging Cluster", Display("staging", "Cluster"))
	assert.Equal(t, "User-acc Test Service", Display("user-acc test", "Service"))
}

func TestLogGroup(t *testing.T) {
	assert.Equal(t, "/ecs/staging-web-server", LogGroup("staging", "web-server"))
	assert.Equal(t, "/ecs/production-api-server", LogGroup("production", "api-server"))
}
