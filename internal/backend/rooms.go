package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type Room struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HostIdentity string `json:"host_identity"`
	IsLocked     bool   `json:"is_locked"`
	MemberCount  int    `json:"member_count"`
}

type CreateRoomParams struct {
	Name     string `json:"name"`
	IsLocked bool   `json:"is_locked"`
}

func (c *Client) CreateRoom(ctx context.Context, params *CreateRoomParams) (Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms", params, &room); err != nil {
		return Room{}, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, &room); err != nil {
		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	return nil
}

type identityParams struct {
	Identity string `json:"identity"`
}

// AdmitFromLobby lets a waiting participant into the room. Host only; the
// backend enforces the permission.
func (c *Client) AdmitFromLobby(ctx context.Context, roomID, identity string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/lobby/admit"
	if err := c.do(ctx, http.MethodPost, path, &identityParams{Identity: identity}, nil); err != nil {
		return fmt.Errorf("failed to admit from lobby: %w", err)
	}

	return nil
}

func (c *Client) PromoteCoHost(ctx context.Context, roomID, identity string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/cohosts"
	if err := c.do(ctx, http.MethodPost, path, &identityParams{Identity: identity}, nil); err != nil {
		return fmt.Errorf("failed to promote co-host: %w", err)
	}

	return nil
}

func (c *Client) DemoteCoHost(ctx context.Context, roomID, identity string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/cohosts/" + url.PathEscape(identity)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to demote co-host: %w", err)
	}

	return nil
}
