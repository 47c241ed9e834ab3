package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.chat/internal/middleware"
	"sudooom.chat/internal/service"
	chaterrors "sudooom.chat/pkg/errors"
	"sudooom.chat/pkg/proto"
)

// MessageHandler 消息接口处理器
type MessageHandler struct {
	svc    *service.MessageService
	logger *slog.Logger
}

// NewMessageHandler 创建消息接口处理器
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{
		svc:    svc,
		logger: slog.Default(),
	}
}

// Contacts GET /api/messages/users
func (h *MessageHandler) Contacts(c *gin.Context) {
	selfID := middleware.GetUserID(c)

	users, unseen, err := h.svc.Contacts(c.Request.Context(), selfID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proto.UsersResponse{
		Success:        true,
		Users:          users,
		UnseenMessages: unseen,
	})
}

// History GET /api/messages/:id
func (h *MessageHandler) History(c *gin.Context) {
	selfID := middleware.GetUserID(c)
	peerID := c.Param("id")

	msgs, err := h.svc.History(c.Request.Context(), selfID, peerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proto.MessagesResponse{
		Success:  true,
		Messages: msgs,
	})
}

// Send POST /api/messages/send/:id
func (h *MessageHandler) Send(c *gin.Context) {
	selfID := middleware.GetUserID(c)
	peerID := c.Param("id")

	var req proto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// MaxBytesReader 超限在绑定阶段暴露
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, proto.StatusResponse{
				Success: false,
				Message: "payload too large",
			})
			return
		}
		c.JSON(http.StatusOK, proto.StatusResponse{Success: false, Message: err.Error()})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), selfID, peerID, req.Text, req.Image)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proto.SendResponse{
		Success:    true,
		NewMessage: msg,
	})
}

// MarkSeen PUT /api/messages/mark/:id
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	if err := h.svc.MarkSeen(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, proto.StatusResponse{Success: true})
}

// Delete DELETE /api/messages/delete/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	selfID := middleware.GetUserID(c)
	peerID := c.Param("id")

	count, err := h.svc.DeleteChat(c.Request.Context(), selfID, peerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proto.DeleteResponse{
		Success:      true,
		DeletedCount: count,
	})
}

// fail 业务失败统一为 success=false 响应，HTTP 状态保持 200
func (h *MessageHandler) fail(c *gin.Context, err error) {
	if chaterrors.GetCode(err) >= chaterrors.CodeServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(http.StatusOK, proto.StatusResponse{
		Success: false,
		Message: chaterrors.GetMessage(err),
	})
}
