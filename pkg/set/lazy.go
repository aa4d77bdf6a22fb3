package set

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// ErrClosed is reported by a Lazy set closed before exhaustion.
var ErrClosed = errors.New("lazy set closed")

// Lazy wraps an iterator. Produced names are buffered so the underlying
// iterator runs at most once, however many times the set is iterated.
type Lazy struct {
	desc  string
	hints Hints

	mu    sync.Mutex
	seq   iter.Seq2[vertex.Name, error]
	next  func() (vertex.Name, error, bool)
	stop  func()
	buf   []vertex.Name
	index map[vertex.Name]struct{}
	done  bool
	err   error
}

var _ Set = (*Lazy)(nil)

// FromIter builds a Lazy set over seq. The sequence must not yield
// duplicates.
func FromIter(desc string, seq iter.Seq2[vertex.Name, error], hints Hints) *Lazy {
	return &Lazy{desc: desc, seq: seq, hints: hints, index: make(map[vertex.Name]struct{})}
}

// Close releases the underlying iterator if it was not exhausted.
func (l *Lazy) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.finish(ErrClosed)
	}
}

// at returns the i-th name, pulling from the iterator as needed.
func (l *Lazy) at(i int) (vertex.Name, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i >= len(l.buf) {
		if l.done {
			return "", false, l.err
		}
		if l.next == nil {
			l.next, l.stop = iter.Pull2(l.seq)
		}
		n, err, ok := l.next()
		switch {
		case !ok:
			l.finish(nil)
		case err != nil:
			l.finish(err)
		default:
			if _, dup := l.index[n]; !dup {
				l.index[n] = struct{}{}
				l.buf = append(l.buf, n)
			}
		}
	}
	return l.buf[i], true, nil
}

func (l *Lazy) finish(err error) {
	l.done, l.err = true, err
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}

func (l *Lazy) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			n, ok, err := l.at(i)
			if err != nil {
				yield("", err)
				return
			}
			if !ok || !yield(n, nil) {
				return
			}
		}
	}
}

// IterRev drains the iterator before yielding.
func (l *Lazy) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		if _, err := l.Count(ctx); err != nil {
			yield("", err)
			return
		}
		l.mu.Lock()
		buf := l.buf
		l.mu.Unlock()
		for i := len(buf) - 1; i >= 0; i-- {
			if !yield(buf[i], nil) {
				return
			}
		}
	}
}

func (l *Lazy) Contains(ctx context.Context, name vertex.Name) (bool, error) {
	if ok, known, _ := l.ContainsFast(ctx, name); known {
		return ok, nil
	}
	l.mu.Lock()
	from := len(l.buf)
	l.mu.Unlock()
	for i := from; ; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		n, ok, err := l.at(i)
		if err != nil || !ok {
			return false, err
		}
		if n == name {
			return true, nil
		}
	}
}

func (l *Lazy) ContainsFast(_ context.Context, name vertex.Name) (bool, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[name]; ok {
		return true, true, nil
	}
	if l.done {
		return false, true, l.err
	}
	return false, false, nil
}

func (l *Lazy) Count(ctx context.Context) (int, error) {
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, ok, err := l.at(i)
		if err != nil {
			return 0, err
		}
		if !ok {
			return i, nil
		}
	}
}

func (l *Lazy) SizeHint() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done && l.err == nil {
		return len(l.buf), len(l.buf)
	}
	return len(l.buf), -1
}

func (l *Lazy) Hints() Hints { return l.hints }

func (l *Lazy) String() string {
	return fmt.Sprintf("<lazy %s>", l.desc)
}
