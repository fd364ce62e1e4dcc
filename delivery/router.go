package delivery

import (
	"context"
	"fmt"
	"sync"
)

// Router dispatches messages to the sender registered for their channel.
type Router struct {
	mu       sync.RWMutex
	routes   map[Channel]Sender
	fallback Sender
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[Channel]Sender)}
}

// Handle registers s for ch, replacing any previous sender.
func (r *Router) Handle(ch Channel, s Sender) *Router {
	r.mu.Lock()
	r.routes[ch] = s
	r.mu.Unlock()
	return r
}

// Fallback sets the sender used for channels without a route.
func (r *Router) Fallback(s Sender) *Router {
	r.mu.Lock()
	r.fallback = s
	r.mu.Unlock()
	return r
}

// Send validates msg and hands it to the channel's sender.
func (r *Router) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	r.mu.RLock()
	s, ok := r.routes[msg.Channel]
	if !ok {
		s = r.fallback
	}
	r.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("%w %q", ErrNoRoute, msg.Channel)
	}
	return s.Send(ctx, msg)
}
