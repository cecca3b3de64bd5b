// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"

	"github.com/livekit/protocol/livekit"
)

// StartRoomCompositeEgress starts recording a room
func (c *Client) StartRoomCompositeEgress(ctx context.Context, request *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error) {
	return c.egress.StartRoomCompositeEgress(ctx, request)
}

// StopEgress stops a running egress
func (c *Client) StopEgress(ctx context.Context, request *livekit.StopEgressRequest) (*livekit.EgressInfo, error) {
	return c.egress.StopEgress(ctx, request)
}
