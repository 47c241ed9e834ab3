package proto

import "sudooom.chat/pkg/model"

// ============== 请求/响应通道载荷 ==============

// UsersResponse GET /api/messages/users 响应
type UsersResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message,omitempty"`
	Users          []model.User   `json:"users,omitempty"`
	UnseenMessages map[string]int `json:"unseenMessages,omitempty"`
}

// MessagesResponse GET /api/messages/:id 响应
type MessagesResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Messages []model.Message `json:"messages"`
}

// SendRequest POST /api/messages/send/:id 请求体，text 与 image 至少一个非空
type SendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// SendResponse POST /api/messages/send/:id 响应
type SendResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	NewMessage *model.Message `json:"newMessage,omitempty"`
}

// StatusResponse 仅携带成功标记的响应（PUT /api/messages/mark/:id）
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// DeleteResponse DELETE /api/messages/delete/:id 响应
type DeleteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	DeletedCount int64  `json:"deletedCount"`
}
