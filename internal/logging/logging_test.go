package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/config"
)

func TestNewWithWriter_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := NewWithWriter(config.LogConfig{Level: tt.level}, &bytes.Buffer{})
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}

	var buf bytes.Buffer
	console := NewWithWriter(config.LogConfig{Level: "info", Format: "console"}, &buf)
	console.Info().Msg("ready")
	assert.Contains(t, buf.String(), "ready")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LogConfig{Level: "info"}, &buf)

	h := Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plans", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/boom", nil))

	var lines []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, "inside", lines[0]["message"], "the request logger is in the context")

	assert.Equal(t, "/plans", lines[1]["path"])
	assert.EqualValues(t, 200, lines[1]["status"])
	assert.EqualValues(t, 2, lines[1]["bytes"])
	assert.Equal(t, "info", lines[1]["level"])

	assert.Equal(t, "POST", lines[3]["method"])
	assert.EqualValues(t, 500, lines[3]["status"])
	assert.Equal(t, "error", lines[3]["level"])
}
