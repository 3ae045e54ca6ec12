package ws

import (
	"encoding/json"
	"testing"
)

func newTestClient(userID uint, buf int) *Client {
	return &Client{userID: userID, uname: "user", send: make(chan []byte, buf)}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.Online(1) != 0 {
		t.Errorf("Online() for unknown user = %d, want 0", hub.Online(1))
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := newTestClient(1, 8)

	hub.Register(c)
	if hub.Online(1) != 1 {
		t.Errorf("Online() after register = %d, want 1", hub.Online(1))
	}

	hub.Unregister(c)
	if hub.Online(1) != 0 {
		t.Errorf("Online() after unregister = %d, want 0", hub.Online(1))
	}

	// 重复摘除是安全的。
	hub.Unregister(c)
	if hub.Online(1) != 0 {
		t.Errorf("Online() after double unregister = %d, want 0", hub.Online(1))
	}
}

func TestHub_MultipleConnectionsPerUser(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(1, 8)
	c2 := newTestClient(1, 8)

	hub.Register(c1)
	hub.Register(c2)
	if hub.Online(1) != 2 {
		t.Fatalf("Online() = %d, want 2", hub.Online(1))
	}

	hub.SendToUser(1, EventReceiveMessage, map[string]string{"body": "hello"})

	for i, c := range []*Client{c1, c2} {
		select {
		case b := <-c.send:
			var env Envelope
			if err := json.Unmarshal(b, &env); err != nil {
				t.Fatalf("client %d: invalid envelope: %v", i, err)
			}
			if env.Event != EventReceiveMessage {
				t.Errorf("client %d: event = %q, want %q", i, env.Event, EventReceiveMessage)
			}
		default:
			t.Errorf("client %d did not receive the event", i)
		}
	}
}

func TestHub_SendToOfflineUser(t *testing.T) {
	hub := NewHub()
	// 没有任何连接时推送应静默跳过，不 panic。
	hub.SendToUser(99, EventMessageDeleted, map[string]uint{"id": 1})
}

func TestHub_SendDoesNotCrossUsers(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(1, 8)
	bob := newTestClient(2, 8)
	hub.Register(alice)
	hub.Register(bob)

	hub.SendToUser(1, EventReceiveMessage, map[string]string{"body": "for alice"})

	select {
	case <-bob.send:
		t.Error("bob received an event addressed to alice")
	default:
	}
	select {
	case <-alice.send:
	default:
		t.Error("alice did not receive her event")
	}
}

func TestHub_DropsClientWithFullBuffer(t *testing.T) {
	hub := NewHub()
	stuck := newTestClient(1, 0)
	hub.Register(stuck)

	hub.SendToUser(1, EventReceiveMessage, map[string]string{"body": "hi"})

	if hub.Online(1) != 0 {
		t.Errorf("Online() = %d, want 0 after dropping a stuck client", hub.Online(1))
	}
	// 发送队列应已关闭。
	if _, ok := <-stuck.send; ok {
		t.Error("send channel should be closed for a dropped client")
	}
}
