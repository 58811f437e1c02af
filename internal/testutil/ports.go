package testutil

import (
	"context"
	"sync"

	"github.com/taskflow/backend/domain"
)

// Publisher records published realtime events.
type Publisher struct {
	mu     sync.Mutex
	events []domain.Event
	Err    error
}

func (p *Publisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.Err
}

func (p *Publisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

// Names returns the first event name of every published event.
func (p *Publisher) Names() []string {
	var names []string
	for _, ev := range p.Events() {
		if len(ev.Events) > 0 {
			names = append(names, ev.Events[0])
		}
	}
	return names
}

// BufferedOp is one call recorded by Buffer.
type BufferedOp struct {
	Entity    string
	Operation string
	ID        string
}

// Buffer records offline-buffer calls.
type Buffer struct {
	mu  sync.Mutex
	Ops []BufferedOp
	Err error
}

func (b *Buffer) record(entity, op, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Ops = append(b.Ops, BufferedOp{Entity: entity, Operation: op, ID: id})
	return nil
}

func (b *Buffer) BufferProject(_ context.Context, op string, project *domain.Project) error {
	return b.record("project", op, project.ID)
}

func (b *Buffer) BufferTask(_ context.Context, op string, task *domain.Task) error {
	return b.record("task", op, task.ID)
}

func (b *Buffer) BufferComment(_ context.Context, op string, comment *domain.Comment) error {
	return b.record("comment", op, comment.ID)
}
