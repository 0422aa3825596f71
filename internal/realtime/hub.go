package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// redisChannelPrefix namespaces the pub/sub channels used to bridge
// events between server instances. One channel per room keeps the
// pattern subscription cheap and the fan-in per instance small.
const redisChannelPrefix = "room-events:"

// subscriptionBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind is dropped rather than allowed to stall
// the hub; clients treat a closed feed as a signal to reconnect and
// refetch, which the at-least-once contract permits.
const subscriptionBuffer = 64

// Subscription is one consumer's handle on a room's feed. Events
// arrive on C(). Unsubscribe is idempotent and must be called on every
// exit path of the consuming view; after it returns the channel is
// closed and no further events are delivered.
type Subscription struct {
	hub    *Hub
	roomID uint64
	ch     chan Event
	once   sync.Once
}

// C returns the receive side of the subscription.
func (s *Subscription) C() <-chan Event { return s.ch }

// Unsubscribe detaches the subscription from the hub and closes its
// channel. Safe to call any number of times, from any goroutine.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.detach(s)
		close(s.ch)
	})
}

// Hub fans typed room events out to local subscribers and, when a
// redis client is configured, bridges them across server instances via
// pub/sub. A nil redis client degrades to single-instance local
// fan-out, which is correct as long as one server handles a room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint64]map[*Subscription]struct{}

	rdb      *redis.Client
	instance string
	log      *logrus.Entry
}

// NewHub creates a hub. rdb may be nil.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rooms:    make(map[uint64]map[*Subscription]struct{}),
		rdb:      rdb,
		instance: uuid.NewString(),
		log:      logrus.WithField("component", "realtime-hub"),
	}
}

// Subscribe attaches a new consumer to a room's feed.
func (h *Hub) Subscribe(roomID uint64) *Subscription {
	sub := &Subscription{hub: h, roomID: roomID, ch: make(chan Event, subscriptionBuffer)}
	h.mu.Lock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.rooms[roomID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) detach(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.rooms[sub.roomID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.rooms, sub.roomID)
		}
	}
	h.mu.Unlock()
}

// Publish delivers an event to every local subscriber of its room and
// forwards it to the redis bridge for other instances. Publish never
// blocks on a slow consumer: a subscriber with a full buffer is
// dropped and its channel closed.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	ev.Origin = h.instance
	h.fanOut(ev)
	if h.rdb == nil {
		return
	}
	payload, err := ev.Encode()
	if err != nil {
		h.log.WithError(err).Error("encode event for redis bridge")
		return
	}
	channel := redisChannelPrefix + strconv.FormatUint(ev.RoomID, 10)
	if err := h.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		// Local subscribers already got the event; cross-instance
		// consumers fall back to refetch-on-reconnect.
		h.log.WithError(err).WithField("channel", channel).Warn("redis publish failed")
	}
}

func (h *Hub) fanOut(ev Event) {
	h.mu.RLock()
	set := h.rooms[ev.RoomID]
	slow := make([]*Subscription, 0)
	for sub := range set {
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()
	for _, sub := range slow {
		h.log.WithFields(logrus.Fields{"room_id": ev.RoomID}).Warn("dropping slow realtime subscriber")
		sub.Unsubscribe()
	}
}

// Run consumes the redis bridge until ctx is cancelled. It pattern-
// subscribes to all room channels and re-fans-out events published by
// other instances; events originating here are skipped. Run returns
// immediately when the hub has no redis client.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		h.log.Info("no redis client; realtime events fan out locally only")
		return
	}
	pubsub := h.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	defer func() { _ = pubsub.Close() }()
	h.log.Info("realtime redis bridge running")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				h.log.Warn("redis bridge channel closed")
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.WithError(err).Warn("malformed event on redis bridge")
				continue
			}
			if ev.Origin == h.instance {
				continue
			}
			if ev.RoomID == 0 {
				// Channel name is authoritative when the payload lost
				// its room id.
				if id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, redisChannelPrefix), 10, 64); err == nil {
					ev.RoomID = id
				}
			}
			h.fanOut(ev)
		}
	}
}
