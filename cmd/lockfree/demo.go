package main

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/llxisdsh/lockfree"
)

// printer remembers the first write error so the walkthrough reads
// straight through.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

func (p *printer) value(v int, ok bool) {
	if ok {
		p.printf("got %d\n", v)
	} else {
		p.printf("got no value\n")
	}
}

func (p *printer) handle(h lockfree.Handle, ok bool) {
	if ok {
		p.printf("got handle %d\n", h)
	} else {
		p.printf("got no handle\n")
	}
}

func runDemo(w io.Writer) error {
	p := &printer{w: w}

	p.printf("CAS loop\n")
	var atom atomic.Int64
	atom.Store(73)
	p.printf("atom = %d\n", atom.Load())
	lockfree.SwapIfNotEqual[int64](&atom, 73, 42)
	p.printf("atom = %d\n", atom.Load())
	lockfree.SwapIfNotEqual[int64](&atom, 37, 42)
	p.printf("atom = %d\n", atom.Load())
	lockfree.MultiplyInt64(&atom, 2)
	p.printf("atom = %d after multiply by 2\n", atom.Load())

	p.printf("\nindex pool\n")
	pool := lockfree.NewIndexPool(2)
	h1, ok1 := pool.Get()
	h2, ok2 := pool.Get()
	h3, ok3 := pool.Get()
	p.handle(h1, ok1)
	p.handle(h2, ok2)
	p.handle(h3, ok3)
	pool.Free(h2)
	h4, ok4 := pool.Get()
	p.handle(h4, ok4)

	p.printf("\ntake buffer\n")
	tb := lockfree.NewTakeBuffer[int](2)
	p.value(tb.Take())
	old, loaded, _ := tb.Write(73)
	p.value(old, loaded)
	old, loaded, _ = tb.Write(37)
	p.value(old, loaded)
	if !tb.TryWrite(42) {
		p.printf("buffer full\n")
	}
	p.value(tb.Take())
	p.value(tb.Take())
	if !tb.TryWrite(42) {
		p.printf("buffer full\n")
	}
	p.value(tb.Take())

	p.printf("\nexchange buffer\n")
	eb := lockfree.NewExchangeBuffer[int](2)
	p.value(eb.Read())
	old, loaded, _ = eb.Write(73)
	p.value(old, loaded)
	p.value(eb.Read())
	p.value(eb.Read())
	p.value(eb.Take())
	p.value(eb.Read())

	p.printf("\nsync counter\n")
	var c lockfree.SyncCounter
	for range 3 {
		c.Increment()
	}
	c1, c2 := c.GetIfEqual()
	p.printf("count1 = %d count2 = %d sync = %d\n", c1, c2, c.Sync())

	return p.err
}
