// Package dispatch routes invocation messages to the form-fill engine. Every
// transport (HTTP, NATS, SQS) decodes into Message and hands it here.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/orchestrator"
)

const (
	ActionPing        = "ping"
	ActionPostVehicle = "postVehicle"
)

type Message struct {
	Action  string                 `json:"action" binding:"required"`
	Vehicle *models.VehicleListing `json:"vehicle,omitempty"`
}

// Poster is the engine entry point.
type Poster interface {
	Post(ctx context.Context, req orchestrator.Request) models.OperationResult
}

type Dispatcher struct {
	poster   Poster
	lifetime context.Context
}

type Option func(*Dispatcher)

// WithLifetime ties every run to ctx, usually the process lifetime. Runs are
// detached from the caller's context, so a dropped HTTP client or an expired
// message deadline never leaves the form half filled; only ctx stops them.
func WithLifetime(ctx context.Context) Option {
	return func(d *Dispatcher) {
		d.lifetime = ctx
	}
}

func New(poster Poster, opts ...Option) *Dispatcher {
	d := &Dispatcher{poster: poster, lifetime: context.Background()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Handle(ctx context.Context, msg Message, source string) models.OperationResult {
	switch msg.Action {
	case ActionPing:
		return models.OperationResult{Success: true}
	case ActionPostVehicle:
		if msg.Vehicle == nil {
			log.Printf("⚠️ postVehicle from %s carried no vehicle", source)
			return models.Failed("Missing vehicle")
		}
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(d.lifetime, cancel)
		defer stop()
		return d.poster.Post(runCtx, orchestrator.Request{Listing: *msg.Vehicle, Source: source})
	default:
		log.Printf("⚠️ Unknown action %q from %s", msg.Action, source)
		return models.Failed(fmt.Sprintf("Unknown action: %s", msg.Action))
	}
}

// HandleRaw decodes a JSON message body and handles it. A body that is not a
// message yields a failed result, never an error.
func (d *Dispatcher) HandleRaw(ctx context.Context, data []byte, source string) models.OperationResult {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("❌ Invalid message from %s: %v", source, err)
		return models.Failed(fmt.Sprintf("Invalid message: %v", err))
	}
	return d.Handle(ctx, msg, source)
}
