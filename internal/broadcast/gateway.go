package broadcast

import (
	"context"
	"log"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// Gateway fans an event out to every subscriber of topic. Delivery is
// best effort; an error only means the event could not be handed off.
type Gateway interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

// Deliverer receives encoded envelopes for local subscribers.
type Deliverer interface {
	Deliver(topic string, raw []byte)
}

// LocalGateway hands events straight to an in-process deliverer.
type LocalGateway struct {
	sink Deliverer
}

func NewLocalGateway(sink Deliverer) *LocalGateway {
	return &LocalGateway{sink: sink}
}

func (g *LocalGateway) Publish(ctx context.Context, topic string, ev Event) error {
	raw, err := Encode(topic, ev)
	if err != nil {
		return err
	}
	g.sink.Deliver(topic, raw)
	return nil
}

// RedisGateway publishes envelopes on Redis channels so every server
// process can relay them to its own websocket clients.
type RedisGateway struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisGateway(rdb *redis.Client, prefix string) *RedisGateway {
	return &RedisGateway{rdb: rdb, prefix: prefix}
}

func (g *RedisGateway) channel(topic string) string {
	return g.prefix + ":events:" + topic
}

func (g *RedisGateway) Publish(ctx context.Context, topic string, ev Event) error {
	raw, err := Encode(topic, ev)
	if err != nil {
		return err
	}
	return g.rdb.Publish(ctx, g.channel(topic), raw).Err()
}

// Relay subscribes to every event channel and hands decoded envelopes to
// sink. It blocks until ctx is done. ready, if non-nil, is closed once the
// subscription is confirmed.
func (g *RedisGateway) Relay(ctx context.Context, sink Deliverer, ready chan<- struct{}) error {
	sub := g.rdb.PSubscribe(ctx, g.prefix+":events:*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := Decode([]byte(msg.Payload))
			if err != nil {
				log.Printf("RedisGateway.Relay: dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			sink.Deliver(env.Topic, []byte(msg.Payload))
		}
	}
}

// Recorder is a Gateway that keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Published
}

type Published struct {
	Topic string
	Event Event
}

func (r *Recorder) Publish(ctx context.Context, topic string, ev Event) error {
	if _, err := Encode(topic, ev); err != nil {
		return err
	}
	r.mu.Lock()
	r.Events = append(r.Events, Published{Topic: topic, Event: ev})
	r.mu.Unlock()
	return nil
}

// Kinds lists the kinds published on topic, in order.
func (r *Recorder) Kinds(topic string) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, p := range r.Events {
		if p.Topic == topic {
			out = append(out, p.Event.Kind())
		}
	}
	return out
}

// Last returns the most recent event of kind on topic.
func (r *Recorder) Last(topic string, kind Kind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Topic == topic && r.Events[i].Event.Kind() == kind {
			return r.Events[i].Event, true
		}
	}
	return nil, false
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.Events = nil
	r.mu.Unlock()
}
