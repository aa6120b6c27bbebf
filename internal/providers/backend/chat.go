// Package backend talks to the assistant HTTP service for chat replies and
// batch transcription.
package backend

import (
	"context"
	"errors"

	"voicechat/internal/domain"
	"voicechat/internal/remote"
)

const DefaultChatPath = "/chat"

type chatRequest struct {
	UserInput string `json:"user_input"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// ChatClient implements ports.ChatService against the assistant backend.
type ChatClient struct {
	client *remote.Client
	path   string
}

func NewChatClient(client *remote.Client, path string) *ChatClient {
	if path == "" {
		path = DefaultChatPath
	}
	return &ChatClient{client: client, path: path}
}

// Send posts the user text verbatim and returns the assistant reply.
func (c *ChatClient) Send(ctx context.Context, text string) (string, error) {
	var out chatResponse
	if err := c.client.PostJSON(ctx, c.path, chatRequest{UserInput: text}, &out); err != nil {
		return "", &domain.ChatError{Err: err}
	}
	if out.Response == nil {
		return "", &domain.ChatError{Err: errors.New("response field missing")}
	}
	return *out.Response, nil
}
