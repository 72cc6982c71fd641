package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// ChatClient is the chat-completion collaborator behind the answerer.
// Implemented by pkg/ollama.ChatClient.
type ChatClient interface {
	Chat(ctx context.Context, system string, history []domain.Message, prompt string) (string, error)
}

const systemPrompt = `Bạn là HomeGenie, trợ lý bất động sản.
Trả lời ngắn gọn dựa trên thông tin được cung cấp. Nếu thông tin không đủ,
hãy nói rõ là không tìm thấy.`

// ChatAnswerer answers questions by stuffing retrieved contexts into a
// single prompt, mirroring a plain retrieval-QA chain.
type ChatAnswerer struct {
	chat ChatClient
}

// NewChatAnswerer wraps a chat client as an Answerer.
func NewChatAnswerer(chat ChatClient) *ChatAnswerer {
	return &ChatAnswerer{chat: chat}
}

// Answer implements Answerer.
func (a *ChatAnswerer) Answer(ctx context.Context, query string, history []domain.Message, contexts []string) (string, error) {
	var b strings.Builder
	b.WriteString("Trả lời ngắn gọn dựa trên thông tin dưới đây.\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, c)
	}
	fmt.Fprintf(&b, "Câu hỏi: %s\nTrả lời:", query)

	return a.chat.Chat(ctx, systemPrompt, history, b.String())
}
