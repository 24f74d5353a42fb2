package docstore

import "context"

// Buffer accumulates operations and hands them to the Committer each time a full
// batch is pending. OnFlush runs after every successful commit with the running total.
type Buffer struct {
	committer *Committer
	pending   []Op
	applied   int

	OnFlush func(ctx context.Context, applied int) error
}

func (c *Committer) NewBuffer() *Buffer {
	return &Buffer{committer: c, pending: make([]Op, 0, c.ceiling())}
}

func (b *Buffer) Add(ctx context.Context, op Op) error {
	b.pending = append(b.pending, op)
	if len(b.pending) >= b.committer.ceiling() {
		return b.Flush(ctx)
	}
	return nil
}

// Flush commits whatever is pending.
func (b *Buffer) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	n, err := b.committer.Apply(ctx, b.pending)
	b.applied += n
	if err != nil {
		return err
	}
	b.pending = b.pending[:0]
	if b.OnFlush != nil {
		return b.OnFlush(ctx, b.applied)
	}
	return nil
}

func (b *Buffer) Applied() int { return b.applied }

func (b *Buffer) Pending() int { return len(b.pending) }
