/*
 * Copyright (C) 2026 Mustafa Naseer (Mustafa Gaeed)
 *
 * This file is part of ployer.
 *
 * ployer is free software: you can redistribute it and/or modify
 * it under the terms of the MIT License as described in the
 * LICENSE file distributed with this project.
 *
 * ployer is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * MIT License for more details.
 *
 * You should have received a copy of the MIT License
 * along with ployer. If not, see the LICENSE file in the project root.
 */

// Package eventbus is the in-process channelized publish/subscribe bus
// (component C): topic strings fan out to subscribers with bounded
// per-subscriber backpressure. Remote delivery of these events is the job
// of the external transport layer (spec §6.4); this package never touches
// a socket.
package eventbus

import "sync"

// DefaultInboxSize is the default bound on a subscriber's inbox (spec §4.5).
const DefaultInboxSize = 256

// Event is one message published on a topic. Seq is monotonically
// increasing per topic and lets a subscriber detect gaps left by a dropped
// message.
type Event struct {
	Topic   string
	Seq     uint64
	Payload interface{}
}

// Subscription is the handle returned by Subscribe. Calling Unsubscribe
// stops delivery and releases the subscriber's inbox; per spec's design
// notes ("a subscription handle whose drop unsubscribes"), callers should
// always defer Unsubscribe.
type Subscription struct {
	id     uint64
	topic  string
	bus    *Bus
	Events <-chan Event
}

func (s *Subscription) Unsubscribe() {
	s.bus.unregister <- unregisterReq{topic: s.topic, id: s.id}
}

// Lagging reports whether this subscription has ever had a message dropped
// because its inbox was full.
func (s *Subscription) Lagging() bool {
	return s.bus.laggingSnapshot(s.topic, s.id)
}

type subscriber struct {
	id      uint64
	inbox   chan Event
	lagging bool
}

type registerReq struct {
	topic string
	sub   *subscriber
}

type unregisterReq struct {
	topic string
	id    uint64
}

type publishReq struct {
	topic   string
	payload interface{}
}

type laggingQuery struct {
	topic  string
	id     uint64
	result chan bool
}

// Bus is the process-local pub/sub hub. A single goroutine (run) owns the
// subscriber map, so the hot broadcast path never contends on a lock —
// the same shape splax-s-peep's ws.Hub uses for its per-project client
// registry, generalized here to opaque topics and given each subscriber
// its own bounded, drop-oldest inbox instead of a synchronous Send call.
type Bus struct {
	inboxSize int

	register   chan registerReq
	unregister chan unregisterReq
	publish    chan publishReq
	laggingQ   chan laggingQuery

	nextID uint64
	idMu   sync.Mutex
}

func New() *Bus {
	return NewWithInboxSize(DefaultInboxSize)
}

func NewWithInboxSize(inboxSize int) *Bus {
	b := &Bus{
		inboxSize:  inboxSize,
		register:   make(chan registerReq),
		unregister: make(chan unregisterReq),
		publish:    make(chan publishReq, 64),
		laggingQ:   make(chan laggingQuery),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	subs := make(map[string]map[uint64]*subscriber)
	seq := make(map[string]uint64)

	for {
		select {
		case req := <-b.register:
			if _, ok := subs[req.topic]; !ok {
				subs[req.topic] = make(map[uint64]*subscriber)
			}
			subs[req.topic][req.sub.id] = req.sub

		case req := <-b.unregister:
			if m, ok := subs[req.topic]; ok {
				if s, ok := m[req.id]; ok {
					close(s.inbox)
					delete(m, req.id)
				}
				if len(m) == 0 {
					delete(subs, req.topic)
				}
			}

		case req := <-b.publish:
			seq[req.topic]++
			ev := Event{Topic: req.topic, Seq: seq[req.topic], Payload: req.payload}
			for _, s := range subs[req.topic] {
				select {
				case s.inbox <- ev:
				default:
					// inbox full: drop the oldest queued event, then retry
					// once. A publisher never blocks on a slow subscriber.
					select {
					case <-s.inbox:
					default:
					}
					select {
					case s.inbox <- ev:
					default:
					}
					s.lagging = true
				}
			}

		case q := <-b.laggingQ:
			result := false
			if m, ok := subs[q.topic]; ok {
				if s, ok := m[q.id]; ok {
					result = s.lagging
				}
			}
			q.result <- result
		}
	}
}

// Subscribe registers a new subscriber on topic and returns a Subscription
// carrying its receive-only event channel.
func (b *Bus) Subscribe(topic string) *Subscription {
	b.idMu.Lock()
	b.nextID++
	id := b.nextID
	b.idMu.Unlock()

	s := &subscriber{id: id, inbox: make(chan Event, b.inboxSize)}
	b.register <- registerReq{topic: topic, sub: s}

	return &Subscription{id: id, topic: topic, bus: b, Events: s.inbox}
}

// Publish hands the event to the run loop through the 64-deep handoff
// buffer. It returns at once while that buffer has room; when the buffer is
// full it blocks until the run loop takes the next event. Per-subscriber
// overflow is handled separately by the run loop (drop oldest).
func (b *Bus) Publish(topic string, payload interface{}) {
	b.publish <- publishReq{topic: topic, payload: payload}
}

func (b *Bus) laggingSnapshot(topic string, id uint64) bool {
	result := make(chan bool, 1)
	b.laggingQ <- laggingQuery{topic: topic, id: id, result: result}
	return <-result
}
