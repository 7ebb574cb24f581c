package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGeneratorHandlerGenerateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewGeneratorHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules/generate", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Generate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeneratorHandlerCommitRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewGeneratorHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules/commit", strings.NewReader(""))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Commit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
