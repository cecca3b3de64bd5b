// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/nats-io/nats.go"
)

// NatsMessage adapts a NATS message to [domain.Message].
type NatsMessage struct {
	*nats.Msg
}

var _ domain.Message = (*NatsMessage)(nil)

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{Msg: msg}
}

// Subject returns the subject the message was received on
func (m *NatsMessage) Subject() string {
	return m.Msg.Subject
}

// Data returns the message payload
func (m *NatsMessage) Data() []byte {
	return m.Msg.Data
}

// HasReply reports whether the sender expects a response
func (m *NatsMessage) HasReply() bool {
	return m.Msg.Reply != ""
}

// Respond replies to the sender
func (m *NatsMessage) Respond(data []byte) error {
	return m.Msg.Respond(data)
}
