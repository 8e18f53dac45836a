package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/watchalong/syncengine/internal/domain"
)

type JoinRoomResponse struct {
	Role           domain.Role            `json:"role"`
	Participants   []domain.Participant   `json:"participants"`
	ChatMessages   []domain.ChatMessage   `json:"chat_messages"`
	SyncStates     SyncStates             `json:"sync_states"`
	Playlist       domain.Playlist        `json:"playlist"`
	RecentActivity []domain.SystemMessage `json:"recent_activity"`
}

type SyncStates struct {
	Video domain.PlaybackState `json:"video"`
	Music domain.PlaybackState `json:"music"`
}

// JoinRoom registers the caller as a room member and returns the room's
// current state so the local stores can be seeded before the relay socket
// comes up.
func (c *Client) JoinRoom(ctx context.Context, roomID string) (JoinRoomResponse, error) {
	var resp JoinRoomResponse
	path := "/api/rooms/" + url.PathEscape(roomID) + "/members"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	return resp, nil
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/members/me"
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

func (c *Client) GetChatHistory(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	path := "/api/rooms/" + url.PathEscape(roomID) + "/chat"
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}

	return messages, nil
}

// ClearChatHistory wipes the room's persisted chat. The relay broadcasts a
// chat_cleared message to connected members afterwards.
func (c *Client) ClearChatHistory(ctx context.Context, roomID string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/chat"
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}

	return nil
}
