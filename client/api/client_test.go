package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chaterrors "sudooom.chat/pkg/errors"
	"sudooom.chat/pkg/model"
	"sudooom.chat/pkg/proto"
)

func TestClient_GetUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/users" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(proto.UsersResponse{
			Success:        true,
			Users:          []model.User{{ID: "u-a", FullName: "Alice"}},
			UnseenMessages: map[string]int{"u-a": 2},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.GetUsers(context.Background())
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].ID != "u-a" {
		t.Errorf("Unexpected users: %+v", resp.Users)
	}
	if resp.UnseenMessages["u-a"] != 2 {
		t.Errorf("Unexpected unseen map: %v", resp.UnseenMessages)
	}
}

func TestClient_GetUsers_NilUnseenBecomesEmptyMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(proto.UsersResponse{Success: true})
	}))
	defer srv.Close()

	resp, err := New(srv.URL, "").GetUsers(context.Background())
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if resp.UnseenMessages == nil {
		t.Error("UnseenMessages must never be nil")
	}
}

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/send/u-a" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req proto.SendRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(proto.SendResponse{
			Success: true,
			NewMessage: &model.Message{
				ID: "m1", SenderID: "u-self", ReceiverID: "u-a", Text: req.Text, CreatedAt: 900,
			},
		})
	}))
	defer srv.Close()

	msg, err := New(srv.URL, "tok").SendMessage(context.Background(), "u-a", proto.SendRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.ID != "m1" || msg.Text != "hi" {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   *chaterrors.AppError
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: chaterrors.ErrUnauthorized},
		{name: "payload too large", status: http.StatusRequestEntityTooLarge, want: chaterrors.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "tok").GetUsers(context.Background())
			if !chaterrors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClient_BusinessFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(proto.StatusResponse{Success: false, Message: "boom"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").GetUsers(context.Background())
	if !chaterrors.Is(err, chaterrors.ErrTransport) {
		t.Errorf("Business failure must map to ErrTransport, got %v", err)
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	// 拨一个已经关闭的地址
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL, "tok").GetUsers(context.Background())
	if !chaterrors.Is(err, chaterrors.ErrTransport) {
		t.Errorf("Network failure must map to ErrTransport, got %v", err)
	}
}

func TestClient_MarkSeenAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/messages/mark/m1":
			json.NewEncoder(w).Encode(proto.StatusResponse{Success: true})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/messages/delete/u-a":
			json.NewEncoder(w).Encode(proto.DeleteResponse{Success: true, DeletedCount: 7})
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	if err := c.MarkSeen(context.Background(), "m1"); err != nil {
		t.Errorf("MarkSeen failed: %v", err)
	}
	count, err := c.DeleteChat(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	if count != 7 {
		t.Errorf("Expected deletedCount 7, got %d", count)
	}
}
