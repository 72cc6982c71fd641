package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// embedServer echoes each prompt's length as the vector's first component
// so pairing is observable.
func embedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{float64(len(req.Prompt)), 0.5}})
	}))
}

func TestEmbedBatch_PairsVectorsWithTexts(t *testing.T) {
	srv := embedServer(t)
	defer srv.Close()

	c, err := NewEmbedClient(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{"a", "bb", "cccc"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(len(texts[i])) {
			t.Fatalf("vector %d paired with wrong text: %v", i, v)
		}
	}
}

func TestNewEmbedClient_UnknownModelRejected(t *testing.T) {
	if _, err := NewEmbedClient("http://localhost:11434", "imaginary-embed"); err == nil {
		t.Fatal("unknown model must be rejected, not defaulted")
	}
}

func TestNewEmbedClient_DefaultModel(t *testing.T) {
	c, err := NewEmbedClient("http://localhost:11434", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Model() != "nomic-embed-text" || c.Dimensions() != 768 {
		t.Fatalf("default client: %s/%d", c.Model(), c.Dimensions())
	}
}

func TestEmbed_NotFoundStatusIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewEmbedClient(srv.URL, "nomic-embed-text")
	_, err := c.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("a 404 must not be classified retryable: %v", err)
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("status and body missing from error: %v", err)
	}
}

func TestEmbed_ServerFaultIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewEmbedClient(srv.URL, "nomic-embed-text")
	_, err := c.EmbedBatch(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestEmbed_DialFailureKeepsCause(t *testing.T) {
	c, _ := NewEmbedClient("http://127.0.0.1:1", "nomic-embed-text")
	_, err := c.EmbedBatch(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "dial") {
		t.Fatalf("transport cause missing from error: %v", err)
	}
}

func TestChat_MapsRolesAndReturnsReply(t *testing.T) {
	var got chatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(chatResp{Message: chatMessage{Role: "assistant", Content: "xin chào"}})
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "llama3.2", 0.3)
	history := []domain.Message{{Role: "human", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	reply, err := c.Chat(context.Background(), "system prompt", history, "câu hỏi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "xin chào" {
		t.Fatalf("reply: %q", reply)
	}

	roles := make([]string, len(got.Messages))
	for i, m := range got.Messages {
		roles[i] = m.Role
	}
	want := []string{"system", "user", "assistant", "user"}
	if fmt.Sprint(roles) != fmt.Sprint(want) {
		t.Fatalf("roles: %v", roles)
	}
	if got.Stream {
		t.Fatal("chat must request a non-streaming reply")
	}
}

func TestChat_BadRequestIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "llama3.2", 0)
	_, err := c.Chat(context.Background(), "", nil, "q")
	if err == nil || errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("a 400 must not be classified retryable: %v", err)
	}
}

func TestChat_ThrottledIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "llama3.2", 0)
	_, err := c.Chat(context.Background(), "", nil, "q")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}
