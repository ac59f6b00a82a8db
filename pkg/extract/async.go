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

package extract

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

var (
	// ErrAsyncClosed is returned when sending a request to a channel that
	// has been shut down, or when the channel is shut down while waiting
	// for a reply.
	ErrAsyncClosed = errors.New("async extractor channel is closed")
	//
	// ErrAsyncTimeout is returned when the resolver does not reply to a
	// request within the channel timeout.
	ErrAsyncTimeout = errors.New("async extraction timed out")
)

// request is one round trip over a Channel. The reply slot is buffered
// and owned by the request, so that a reply sent after the requester gave
// up never blocks the resolver and is never read by a later request.
type request struct {
	seq   uint64
	req   *sdk.AsyncRequest
	reply chan sdk.AsyncResult
}

// Channel is a single-slot rendezvous between the host, sending field
// extraction requests, and the resolver loop of a plugin, serving them.
// It implements sdk.AsyncChannel for the plugin side.
//
// The host sends a request with Do and blocks until the resolver replies.
// The resolver loops over Wait and Reply, until Wait returns false after
// Close.
type Channel struct {
	// seq is the sequence number of the last request sent. It is the
	// first field to be 64-bit aligned for atomic access.
	seq uint64
	//
	// timeout is the max time Do waits for a reply. Zero means no limit.
	timeout time.Duration
	//
	// reqs is unbuffered, so that a request is handed to the resolver
	// only when the resolver is waiting for one
	reqs chan *request
	//
	// done is closed by Close
	done      chan struct{}
	closeOnce sync.Once
	//
	// m protects cur, the request being served by the resolver
	m   sync.Mutex
	cur *request
}

// NewChannel returns a new Channel. If timeout is greater than zero, Do
// fails with ErrAsyncTimeout when no reply comes within it.
func NewChannel(timeout time.Duration) *Channel {
	return &Channel{
		timeout: timeout,
		reqs:    make(chan *request),
		done:    make(chan struct{}),
	}
}

// Do sends a request to the resolver and waits for its reply.
func (c *Channel) Do(req *sdk.AsyncRequest) (sdk.AsyncResult, error) {
	r := &request{
		seq:   atomic.AddUint64(&c.seq, 1),
		req:   req,
		reply: make(chan sdk.AsyncResult, 1),
	}

	var expired <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case c.reqs <- r:
	case <-c.done:
		return sdk.AsyncResult{}, ErrAsyncClosed
	case <-expired:
		return sdk.AsyncResult{}, ErrAsyncTimeout
	}

	select {
	case res := <-r.reply:
		return res, nil
	case <-c.done:
		return sdk.AsyncResult{}, ErrAsyncClosed
	case <-expired:
		return sdk.AsyncResult{}, ErrAsyncTimeout
	}
}

// Wait blocks until a request is available. It returns false once the
// channel is closed.
func (c *Channel) Wait() (*sdk.AsyncRequest, bool) {
	select {
	case r := <-c.reqs:
		c.m.Lock()
		c.cur = r
		c.m.Unlock()
		return r.req, true
	case <-c.done:
		return nil, false
	}
}

// Reply sends back the result of the last request returned by Wait.
// Replies with no pending request are discarded.
func (c *Channel) Reply(res sdk.AsyncResult) {
	c.m.Lock()
	r := c.cur
	c.cur = nil
	c.m.Unlock()
	if r != nil {
		r.reply <- res
	}
}

// Pending returns the sequence number of the request being served by the
// resolver, or zero if there is none.
func (c *Channel) Pending() uint64 {
	c.m.Lock()
	defer c.m.Unlock()
	if c.cur == nil {
		return 0
	}
	return c.cur.seq
}

// Close shuts the channel down. Every blocked Wait returns false, and
// every blocked Do fails with ErrAsyncClosed. Close can be called more
// than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed returns true if the channel has been closed.
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
