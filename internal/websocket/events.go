package websocket

import (
	"context"

	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/log"
)

// Broadcaster encodes messages and hands them to a Hub.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Relay forwards engine events to the hub until ctx is done or events closes.
func (b *Broadcaster) Relay(ctx context.Context, events <-chan holiday.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.BroadcastEvent(ev)
		}
	}
}

// BroadcastEvent translates one engine event into its WebSocket message.
func (b *Broadcaster) BroadcastEvent(ev holiday.Event) {
	switch ev.Type {
	case holiday.EventCacheRebuilt:
		b.broadcast(NewMessage(TypeCacheRebuilt, CacheRebuiltPayload{
			Generation: ev.Generation,
			FocusYear:  ev.FocusYear,
			Regions:    ev.Regions,
		}))
	case holiday.EventRuleChanged:
		if ev.Entry == nil {
			return
		}
		e := ev.Entry
		b.broadcast(NewMessage(TypeRulesChanged, RuleChangedPayload{
			EntryID:     e.ID,
			RuleID:      e.RuleID,
			RuleName:    e.RuleName,
			Region:      e.Region,
			Action:      string(e.Action),
			Description: e.ChangeDescription,
			Source:      string(e.SourceLabel),
			Timestamp:   e.Timestamp,
		}))
	case holiday.EventRegionsChanged:
		b.broadcast(NewMessage(TypeRegionsChanged, RegionsChangedPayload{Regions: ev.Regions}))
	default:
		log.Warn("unknown engine event", "type", ev.Type)
	}
}

// BroadcastNotification sends a dismissible notification to every client.
func (b *Broadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Error("encoding websocket message", err, "type", msg.Type)
		return
	}
	b.hub.Broadcast(data)
}
