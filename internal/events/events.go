// Package events はリードの変更をメッセージブローカーへ通知する。
package events

import (
	"context"
	"time"
)

// Type はイベント種別。RabbitMQのルーティングキーとしても使う。
type Type string

const (
	LeadCreated       Type = "lead.created"
	LeadUpdated       Type = "lead.updated"
	LeadStatusChanged Type = "lead.status_changed"
	LeadDeleted       Type = "lead.deleted"
)

// LeadEvent はリードに対する変更の通知。
type LeadEvent struct {
	Type       Type      `json:"type"`
	LeadID     string    `json:"lead_id"`
	UserID     string    `json:"user_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher はイベントの送信先。
type Publisher interface {
	Publish(ctx context.Context, event LeadEvent) error
	Close() error
}

// NopPublisher はイベントを捨てるPublisher。AMQP_URL未設定時に使う。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, LeadEvent) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
