// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"bytes"
	"context"
	"sync"

	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/graph"
)

// pool is the state of one parallel run. Environments become ready when
// every dependency succeeded.
type pool struct {
	s      *Scheduler
	g      *graph.Graph
	report *Report
	ready  chan *graph.Descriptor
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]int
}

func (p *pool) worker(ctx context.Context, id int) {
	log := ctxlog.FromContext(ctx).With("worker", id)
	log.Debug("worker started")
	for node := range p.ready {
		var o *Outcome
		var buf bytes.Buffer
		if ctx.Err() != nil {
			o = p.s.skip(node, ReasonInterrupted)
		} else {
			o = p.s.run(ctx, node, &syncBuffer{buf: &buf})
			o.Output = buf.String()
		}
		p.s.finish(p.report, o, buf.Bytes())
		p.release(ctx, node, o)
		p.wg.Done()
	}
	log.Debug("worker finished")
}

// release unlocks the dependents of node, or skips them when node did not succeed.
func (p *pool) release(ctx context.Context, node *graph.Descriptor, o *Outcome) {
	for _, name := range node.Dependents {
		dep, ok := p.g.Node(name)
		if !ok {
			continue
		}
		if !o.Succeeded() {
			reason, _ := p.s.blocked(p.report, dep)
			if ctx.Err() != nil {
				reason = ReasonInterrupted
			}
			skipped := p.s.skip(dep, reason)
			p.s.finish(p.report, skipped, nil)
			p.release(ctx, dep, skipped)
			p.wg.Done()
			continue
		}
		p.mu.Lock()
		p.pending[name]--
		unlocked := p.pending[name] == 0
		p.mu.Unlock()
		if unlocked {
			p.ready <- dep
		}
	}
}

// syncBuffer lets the stdout and stderr of one environment share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
