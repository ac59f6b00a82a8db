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

// Package capture drives source plugins and hands their events to the
// engine. It pulls events in batches, stamps them with event numbers and
// source ids, and serializes them toward a single handler.
package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/sirupsen/logrus"
)

// errEmptyBatch is the status of a successful pull without events.
var errEmptyBatch = errors.New("empty batch")

// DefaultRetryInterval is the time waited before pulling again from a
// source that returned a timeout.
const DefaultRetryInterval = 30 * time.Millisecond

// Producer is a source of engine events.
type Producer interface {
	// Next returns the next event. The returned envelope and its data
	// are only valid until the next call to Next or Close. Next returns
	// sdk.ErrEOF once the producer has no more events.
	Next(ctx context.Context) (*sdk.Envelope, error)
	//
	// Close releases the producer.
	Close() error
}

// Sequence assigns monotonically increasing event numbers. It is safe
// for concurrent use, and can be shared by multiple producers.
type Sequence struct {
	n uint64
}

// Next returns the next event number. The first number is 1.
func (s *Sequence) Next() uint64 {
	return atomic.AddUint64(&s.n, 1)
}

// PluginProducer is a Producer reading from the open instance of a
// source plugin.
type PluginProducer struct {
	src     *loader.Source
	seq     *Sequence
	metrics *Metrics
	log     logrus.FieldLogger
	retry   time.Duration
	batch   []sdk.Event
	pos     int
	status  error
	env     sdk.Envelope
}

// ProducerOption customizes a PluginProducer.
type ProducerOption func(*PluginProducer)

// WithSequence sets the sequence used to number events.
func WithSequence(s *Sequence) ProducerOption {
	return func(p *PluginProducer) {
		p.seq = s
	}
}

// WithMetrics sets the metrics updated by the producer.
func WithMetrics(m *Metrics) ProducerOption {
	return func(p *PluginProducer) {
		p.metrics = m
	}
}

// WithRetryInterval sets the time waited after a timeout.
func WithRetryInterval(d time.Duration) ProducerOption {
	return func(p *PluginProducer) {
		p.retry = d
	}
}

// NewPluginProducer returns a producer for the given source, which must
// be already open.
func NewPluginProducer(src *loader.Source, opts ...ProducerOption) *PluginProducer {
	p := &PluginProducer{
		src:   src,
		seq:   &Sequence{},
		log:   src.Plugin().Logger(),
		retry: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Source returns the source of the producer.
func (p *PluginProducer) Source() *loader.Source {
	return p.src
}

// Next implements Producer. Timeouts of the plugin are retried until the
// context is done. Events returned by the plugin together with a timeout,
// an EOF or a failure are handed out before the status is acted upon.
func (p *PluginProducer) Next(ctx context.Context) (*sdk.Envelope, error) {
	name := p.src.EventSource()
	for p.pos >= len(p.batch) {
		if p.status != nil {
			status := p.status
			if !errors.Is(status, sdk.ErrEOF) {
				p.status = nil
			}
			if err := p.handleStatus(ctx, status); err != nil {
				return nil, err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		p.pos = 0
		p.batch, err = p.src.NextBatch(p.batch)
		if len(p.batch) > 0 {
			if p.metrics != nil {
				p.metrics.BatchesTotal.WithLabelValues(name).Inc()
			}
			p.status = err
			break
		}
		if err == nil {
			err = errEmptyBatch
		}
		p.status = err
	}

	evt := p.batch[p.pos]
	p.pos++
	p.env = sdk.Envelope{
		Num:      p.seq.Next(),
		Kind:     sdk.KindPlugin,
		SourceID: p.src.ID(),
		Event:    evt,
	}
	if p.metrics != nil {
		p.metrics.EventsTotal.WithLabelValues(name).Inc()
	}
	return &p.env, nil
}

// handleStatus acts on the status of the last batch once all its events
// are consumed. It returns nil if the producer must pull again.
func (p *PluginProducer) handleStatus(ctx context.Context, err error) error {
	name := p.src.EventSource()
	switch {
	case errors.Is(err, errEmptyBatch):
		return p.wait(ctx)
	case errors.Is(err, sdk.ErrTimeout):
		if p.metrics != nil {
			p.metrics.TimeoutsTotal.WithLabelValues(name).Inc()
		}
		return p.wait(ctx)
	case errors.Is(err, sdk.ErrEOF):
		return err
	default:
		if p.metrics != nil {
			p.metrics.StreamErrors.WithLabelValues(name).Inc()
		}
		return err
	}
}

func (p *PluginProducer) wait(ctx context.Context) error {
	if p.retry <= 0 {
		return nil
	}
	t := time.NewTimer(p.retry)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close implements Producer. It closes the open instance of the source.
func (p *PluginProducer) Close() error {
	p.batch = p.batch[:0]
	p.pos = 0
	p.status = nil
	if !p.src.IsOpen() {
		return nil
	}
	return p.src.Close()
}
