// Package transport delivers invocation messages from NATS and SQS to the
// dispatcher and carries the OperationResult back.
package transport

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"listingpilot/backend/internal/models"
)

const SourceNATS = "nats"

// Handler is satisfied by dispatch.Dispatcher.
type Handler interface {
	HandleRaw(ctx context.Context, data []byte, source string) models.OperationResult
}

// NATSResponder answers request/reply messages on one subject.
type NATSResponder struct {
	nc      *nats.Conn
	subject string
	handler Handler
}

func NewNATSResponder(url, subject string, handler Handler) (*NATSResponder, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("listingpilot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = "listingpilot.commands"
	}
	return &NATSResponder{nc: nc, subject: subject, handler: handler}, nil
}

// Start subscribes until ctx is done. Messages run on their own goroutine so
// a ping is answered while a post is still filling the form.
func (r *NATSResponder) Start(ctx context.Context) error {
	sub, err := r.nc.Subscribe(r.subject, func(msg *nats.Msg) {
		go func() {
			reply := r.process(ctx, msg.Data)
			if msg.Reply == "" {
				return
			}
			if err := msg.Respond(reply); err != nil {
				log.Printf("❌ Failed to reply on %s: %v", msg.Reply, err)
			}
		}()
	})
	if err != nil {
		return err
	}
	log.Printf("📡 Listening for commands on NATS subject %s", r.subject)

	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return nil
}

func (r *NATSResponder) process(ctx context.Context, data []byte) []byte {
	result := r.handler.HandleRaw(ctx, data, SourceNATS)
	reply, err := json.Marshal(result)
	if err != nil {
		log.Printf("❌ Failed to encode reply: %v", err)
		return []byte(`{"success":false,"error":"internal error"}`)
	}
	return reply
}

func (r *NATSResponder) Close() {
	if r.nc != nil {
		r.nc.Close()
	}
}
