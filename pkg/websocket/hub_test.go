package websocket

import "testing"

func TestSendToUnknownClient(t *testing.T) {
	h := NewHub()
	if h.SendToClient("ghost", []byte("hi")) {
		t.Error("delivery to unknown client reported success")
	}
}

func TestSendQueuesOnClient(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", nil)
	h.Add(c)

	if !h.SendToClient("c1", []byte("hello")) {
		t.Fatal("delivery failed")
	}
	select {
	case msg := <-c.Send:
		if string(msg) != "hello" {
			t.Errorf("queued %q", msg)
		}
	default:
		t.Fatal("nothing queued")
	}
}

func TestFullBufferCountsAsFailure(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", nil)
	h.Add(c)

	for i := 0; i < cap(c.Send); i++ {
		if !h.SendToClient("c1", []byte("x")) {
			t.Fatalf("delivery %d failed below capacity", i)
		}
	}
	if h.SendToClient("c1", []byte("overflow")) {
		t.Error("overflow delivery reported success")
	}
}

func TestRemoveClosesSend(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", nil)
	h.Add(c)
	h.Remove("c1")

	if _, open := <-c.Send; open {
		t.Error("send channel still open after removal")
	}
	if h.Count() != 0 {
		t.Errorf("count = %d, want 0", h.Count())
	}
	// A second removal of the same id is a no-op.
	h.Remove("c1")
}
