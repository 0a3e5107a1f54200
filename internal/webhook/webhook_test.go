package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend(t *testing.T) {
	t.Parallel()

	var gotAction, gotText, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAction = r.URL.Query().Get("action")
		gotText = r.URL.Query().Get("text")
		io.WriteString(w, "Summoned the Fat Chocobo!\n")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reply, err := c.Send(context.Background(), "mounts", "summon the fat chocobo")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "Summoned the Fat Chocobo!" {
		t.Errorf("reply = %q", reply)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotAction != "mounts" {
		t.Errorf("action = %q, want mounts", gotAction)
	}
	if gotText != "summon the fat chocobo" {
		t.Errorf("text = %q", gotText)
	}
}

func TestSendEmptyAction(t *testing.T) {
	t.Parallel()

	c, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Send(context.Background(), " ", "anything"); err == nil {
		t.Fatal("want error for empty action")
	}
}

func TestSendErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overlay offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Send(context.Background(), "emotes", "wave"); err == nil {
		t.Fatal("want error on 502")
	}
}
