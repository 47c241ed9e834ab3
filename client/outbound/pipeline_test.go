package outbound

import (
	"context"
	"testing"

	"sudooom.chat/client/reconcile"
	"sudooom.chat/client/session"
	chaterrors "sudooom.chat/pkg/errors"
	"sudooom.chat/pkg/model"
	"sudooom.chat/pkg/proto"
)

// fakeAPI 可编程的请求/响应桩
type fakeAPI struct {
	sendCalls   int
	deleteCalls int
	usersCalls  int

	sendErr   error
	deleteErr error
	usersErr  error

	lastPeer string
	snapshot *proto.UsersResponse
}

func (f *fakeAPI) SendMessage(_ context.Context, peerID string, req proto.SendRequest) (*model.Message, error) {
	f.sendCalls++
	f.lastPeer = peerID
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &model.Message{
		ID:         "m-srv",
		SenderID:   "u-self",
		ReceiverID: peerID,
		Text:       req.Text,
		Image:      req.Image,
		CreatedAt:  700,
	}, nil
}

func (f *fakeAPI) DeleteChat(_ context.Context, peerID string) (int64, error) {
	f.deleteCalls++
	f.lastPeer = peerID
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return 5, nil
}

func (f *fakeAPI) GetUsers(_ context.Context) (*proto.UsersResponse, error) {
	f.usersCalls++
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	if f.snapshot != nil {
		return f.snapshot, nil
	}
	return &proto.UsersResponse{Success: true}, nil
}

func newTestPipeline(api *fakeAPI) (*Pipeline, *session.Store, *reconcile.Reconciler) {
	store := session.NewStore()
	rec := reconcile.New(store, "u-self", nil)
	rec.ApplySnapshot([]model.User{
		{ID: "u-a", FullName: "Alice", LastActivityAt: 100, HasChatted: true},
	}, nil)
	return New(api, store, rec), store, rec
}

func TestSend_EmptyMessageRejected(t *testing.T) {
	api := &fakeAPI{}
	p, _, rec := newTestPipeline(api)
	rec.SetActiveConversation("u-a")

	_, err := p.Send(context.Background(), proto.SendRequest{})
	if !chaterrors.Is(err, chaterrors.ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
	if api.sendCalls != 0 {
		t.Error("Empty message must not reach the network")
	}
}

func TestSend_NoActiveConversation(t *testing.T) {
	api := &fakeAPI{}
	p, _, _ := newTestPipeline(api)

	_, err := p.Send(context.Background(), proto.SendRequest{Text: "hi"})
	if !chaterrors.Is(err, chaterrors.ErrNoRecipient) {
		t.Errorf("Expected ErrNoRecipient, got %v", err)
	}
	if api.sendCalls != 0 {
		t.Error("Send without recipient must not reach the network")
	}
}

func TestSend_AppliesServerEcho(t *testing.T) {
	api := &fakeAPI{}
	p, store, rec := newTestPipeline(api)
	rec.SetActiveConversation("u-a")

	msg, err := p.Send(context.Background(), proto.SendRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if api.lastPeer != "u-a" {
		t.Errorf("Sent to wrong peer: %s", api.lastPeer)
	}

	st := store.State()
	if len(st.Messages) != 1 || st.Messages[0].ID != msg.ID {
		t.Fatalf("Server echo must be appended to the buffer, got %d messages", len(st.Messages))
	}
	conv, _ := st.Conversation("u-a")
	if conv.LastActivityAt != 700 {
		t.Errorf("Expected lastActivityAt 700 from server echo, got %d", conv.LastActivityAt)
	}
}

func TestSend_FailureLeavesStateUntouched(t *testing.T) {
	api := &fakeAPI{sendErr: chaterrors.ErrTransport}
	p, store, rec := newTestPipeline(api)
	rec.SetActiveConversation("u-a")

	before := store.State()
	_, err := p.Send(context.Background(), proto.SendRequest{Text: "hello"})
	if err == nil {
		t.Fatal("Expected error")
	}

	after := store.State()
	if len(after.Messages) != len(before.Messages) {
		t.Error("Failed send must not append to the buffer")
	}
	ca, _ := after.Conversation("u-a")
	cb, _ := before.Conversation("u-a")
	if ca != cb {
		t.Error("Failed send must not touch the conversation")
	}
}

func TestDeleteActiveConversation(t *testing.T) {
	api := &fakeAPI{snapshot: &proto.UsersResponse{
		Success: true,
		Users:   []model.User{{ID: "u-a", FullName: "Alice"}},
	}}
	p, store, rec := newTestPipeline(api)
	rec.SetActiveConversation("u-a")

	count, err := p.DeleteActiveConversation(context.Background())
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected deletedCount 5, got %d", count)
	}
	if api.usersCalls != 1 {
		t.Error("Delete must refresh the snapshot afterwards")
	}

	st := store.State()
	if st.ActivePeerID != "" || len(st.Messages) != 0 {
		t.Error("Delete must deactivate the conversation locally")
	}
	conv, _ := st.Conversation("u-a")
	if conv.HasChatted || conv.LastActivityAt != 0 {
		t.Errorf("Conversation must be reset after delete: %+v", conv)
	}
}

func TestDeleteActiveConversation_NoActive(t *testing.T) {
	api := &fakeAPI{}
	p, _, _ := newTestPipeline(api)

	_, err := p.DeleteActiveConversation(context.Background())
	if !chaterrors.Is(err, chaterrors.ErrNoRecipient) {
		t.Errorf("Expected ErrNoRecipient, got %v", err)
	}
	if api.deleteCalls != 0 {
		t.Error("Delete without active conversation must not reach the network")
	}
}

func TestDeleteActiveConversation_SnapshotFailureNonFatal(t *testing.T) {
	api := &fakeAPI{usersErr: chaterrors.ErrTransport}
	p, store, rec := newTestPipeline(api)
	rec.SetActiveConversation("u-a")

	count, err := p.DeleteActiveConversation(context.Background())
	if err != nil {
		t.Fatalf("Snapshot refresh failure must not fail the delete: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected deletedCount 5, got %d", count)
	}
	if store.State().ActivePeerID != "" {
		t.Error("Local delete must still be applied")
	}
}
