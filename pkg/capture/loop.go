// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The Falco Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package capture

import (
	"context"
	"errors"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"golang.org/x/sync/errgroup"
)

// ErrStop can be returned by a Handler to end a Loop without error.
var ErrStop = errors.New("capture stopped")

// Handler processes one event. The envelope is only valid during the
// call.
type Handler func(evt *sdk.Envelope) error

type delivery struct {
	evt *sdk.Envelope
	ack chan struct{}
}

// Loop pulls events from all the producers concurrently, and passes them
// to the handler one at a time. Each producer waits for its event to be
// handled before pulling the next one, so that the event data stays
// valid during the handler call.
//
// Loop returns when all the producers reach EOF, when the handler fails,
// when a producer fails, or when the context is done. A handler returning
// ErrStop makes Loop return nil. Producers are not closed by Loop.
func Loop(ctx context.Context, producers []Producer, handle Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	deliveries := make(chan delivery)
	for _, p := range producers {
		p := p
		g.Go(func() error {
			return pump(gctx, p, deliveries)
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(deliveries)
	}()

	var handleErr error
	for d := range deliveries {
		if handleErr == nil {
			if handleErr = handle(d.evt); handleErr != nil {
				cancel()
			}
		}
		close(d.ack)
	}

	err := <-waitErr
	if handleErr != nil {
		if errors.Is(handleErr, ErrStop) {
			return nil
		}
		return handleErr
	}
	return err
}

func pump(ctx context.Context, p Producer, out chan<- delivery) error {
	for {
		evt, err := p.Next(ctx)
		if errors.Is(err, sdk.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		d := delivery{evt: evt, ack: make(chan struct{})}
		select {
		case out <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
		<-d.ack
	}
}
