package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// ErrClosed is returned by Do once the worker has been closed.
var ErrClosed = errors.New("db worker closed")

// queueDepth bounds how many writes may wait for the writer goroutine.
const queueDepth = 256

type TxFn func(ctx context.Context, tx *sql.Tx) error

type writeJob struct {
	ctx    context.Context
	fn     TxFn
	result chan error
}

// Worker owns the only write path to SQLite. Journal inserts and prunes are
// queued and committed one transaction at a time on a single goroutine.
type Worker struct {
	conn  *sql.DB
	queue chan writeJob

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewWorker(conn *sql.DB) *Worker {
	w := &Worker{
		conn:  conn,
		queue: make(chan writeJob, queueDepth),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close finishes the writes already queued and stops the writer. It is safe
// to call more than once.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.quit) })
	<-w.done
}

// Do commits fn in its own transaction on the writer goroutine and returns
// its error. A write already picked up runs to completion even if ctx ends
// while the caller waits.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	j := writeJob{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-w.quit:
		return ErrClosed
	default:
	}

	select {
	case w.queue <- j:
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-w.done:
		select {
		case err := <-j.result:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case j := <-w.queue:
			j.result <- w.commit(j)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

// drain commits whatever was queued before Close.
func (w *Worker) drain() {
	for {
		select {
		case j := <-w.queue:
			j.result <- w.commit(j)
		default:
			return
		}
	}
}

func (w *Worker) commit(j writeJob) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	tx, err := w.conn.BeginTx(j.ctx, nil)
	if err != nil {
		return err
	}
	if err := j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
