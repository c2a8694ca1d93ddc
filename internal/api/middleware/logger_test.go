package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLoggedRouter(t *testing.T) (*gin.Engine, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()

	router := gin.New()
	router.Use(RequestID(), RequestLogger(log), ErrorLogger(log))
	router.GET("/players/:id", func(c *gin.Context) {
		if c.Param("id") == "broken" {
			_ = c.Error(errors.New("redis gone"))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	return router, hook
}

func TestRequestLogger_CarriesRequestContext(t *testing.T) {
	router, hook := newLoggedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/players/4046?fresh=true", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	req.Header.Set("User-Agent", "enrichctl")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "http", entry.Data["component"])
	assert.Equal(t, "req-42", entry.Data["request_id"])
	assert.Equal(t, "4046", entry.Data["player_id"])
	assert.Equal(t, http.MethodGet, entry.Data["http_method"])
	assert.Equal(t, "/players/4046", entry.Data["http_path"])
	assert.Equal(t, "enrichctl", entry.Data["http_user_agent"])
	assert.Equal(t, "fresh=true", entry.Data["query"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}

func TestErrorLogger_LogsAttachedErrors(t *testing.T) {
	router, hook := newLoggedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/players/broken", nil))

	var errorEntries []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Request error" {
			errorEntries = append(errorEntries, e)
		}
	}
	require.Len(t, errorEntries, 1)
	assert.Equal(t, "broken", errorEntries[0].Data["player_id"])
	assert.NotEmpty(t, errorEntries[0].Data["request_id"])
	assert.EqualError(t, errorEntries[0].Data[logrus.ErrorKey].(error), "redis gone")
}
