package dynpb

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/protolite/dynpb/dynamic"
)

// ParseBatch decodes independent payloads of the same type concurrently,
// using at most Config.BatchWorkers goroutines. Results are in input order.
// The registry must not be modified while a batch runs.
func (p *Protolite) ParseBatch(ctx context.Context, messageType string, payloads [][]byte) ([]*dynamic.Message, error) {
	desc, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s: %w", messageType, err)
	}
	log.Debugf("parsing %d %s payloads", len(payloads), messageType)

	opts := p.unmarshalOptions()
	out := make([]*dynamic.Message, len(payloads))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, data := range payloads {
		i, data := i, data
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg := dynamic.New(desc, p.registry)
			if err := opts.Unmarshal(data, msg); err != nil {
				return fmt.Errorf("payload %d: %w", i, err)
			}
			out[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalBatch encodes msgs concurrently. Each message is serialized by one
// goroutine; msgs must not share sub-messages.
func (p *Protolite) MarshalBatch(ctx context.Context, msgs []*dynamic.Message) ([][]byte, error) {
	log.Debugf("marshaling %d messages", len(msgs))

	opts := dynamic.MarshalOptions{AllowPartial: p.cfg.AllowPartial}
	out := make([][]byte, len(msgs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := opts.Marshal(msg)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Protolite) workers() int {
	if p.cfg.BatchWorkers > 0 {
		return p.cfg.BatchWorkers
	}
	return 1
}
