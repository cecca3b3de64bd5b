// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"

	"github.com/livekit/protocol/livekit"
)

// CreateRoom creates a room. LiveKit returns the existing room when the name is taken.
func (c *Client) CreateRoom(ctx context.Context, request *livekit.CreateRoomRequest) (*livekit.Room, error) {
	return c.rooms.CreateRoom(ctx, request)
}

// DeleteRoom closes a room and disconnects its participants.
func (c *Client) DeleteRoom(ctx context.Context, request *livekit.DeleteRoomRequest) error {
	_, err := c.rooms.DeleteRoom(ctx, request)
	return err
}
