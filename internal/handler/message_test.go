package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"sudooom.chat/internal/middleware"
)

// setupSendRouter 只挂发送路由，请求体限制压到很小以便触发超限
func setupSendRouter(maxBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMessageHandler(nil)

	r := gin.New()
	grp := r.Group("/api/messages")
	grp.Use(middleware.BodyLimit(maxBytes))
	grp.Use(func(c *gin.Context) {
		c.Set("user_id", "u-self")
	})
	grp.POST("/send/:id", h.Send)
	return r
}

func TestSend_OversizedPayloadReturns413(t *testing.T) {
	r := setupSendRouter(32)

	body := bytes.NewReader(append([]byte(`{"image":"`), append(bytes.Repeat([]byte("A"), 256), []byte(`"}`)...)...))
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/u-a", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestSend_MalformedBodyFailsGracefully(t *testing.T) {
	r := setupSendRouter(1 << 20)

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/u-a", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}
