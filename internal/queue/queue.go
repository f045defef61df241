// Package queue implementa la cola de trabajo con robo (work-stealing) que
// alimenta a los workers del recorrido de directorios: un inyector global
// compartido más una cola FIFO privada por worker.
package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Steal es el resultado de un intento de robo sobre la cola global.
type Steal int

const (
	// Empty: no hay nada que robar y nadie va a producir más.
	Empty Steal = iota
	// Success: se obtuvo una tarea.
	Success
	// Retry: la cola está ocupada o vacía de momento; hay que reintentar.
	Retry
)

func (s Steal) String() string {
	switch s {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return "empty"
	}
}

// maxBatch limita cuántas tareas se mueven de golpe a la cola local.
const maxBatch = 16

// Espera entre robos fallidos: unos cuantos Gosched y después sueños que
// se duplican hasta maxBackoff.
const (
	spinLimit  = 8
	minBackoff = 10 * time.Microsecond
	maxBackoff = time.Millisecond
)

// Global es la parte compartida de la cola.
type Global[T any] interface {
	Push(item T)
	StealBatchAndPop(dest *Worker[T]) (T, Steal)
	Done()
}

// Injector es la cola global MPMC. Cuenta las tareas entregadas y no
// terminadas para que Empty solo se reporte cuando el recorrido acabó.
type Injector[T any] struct {
	mu       sync.Mutex
	items    []T
	inflight atomic.Int64
}

// NewInjector crea un inyector sembrado con las tareas iniciales.
func NewInjector[T any](seed ...T) *Injector[T] {
	q := &Injector[T]{}
	q.items = append(q.items, seed...)
	return q
}

// Push encola una tarea. Seguro para uso concurrente.
func (q *Injector[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// StealBatchAndPop roba hasta la mitad de las tareas pendientes (máximo
// maxBatch), deja el resto en dest y devuelve una. Si el candado está
// ocupado, o la cola está vacía pero hay tareas en curso que todavía
// pueden encolar subdirectorios, devuelve Retry.
func (q *Injector[T]) StealBatchAndPop(dest *Worker[T]) (T, Steal) {
	var zero T

	if !q.mu.TryLock() {
		return zero, Retry
	}
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.inflight.Load() > 0 {
			return zero, Retry
		}
		return zero, Empty
	}

	n := (len(q.items) + 1) / 2
	if n > maxBatch {
		n = maxBatch
	}

	batch := q.items[:n]
	first := batch[0]
	for _, item := range batch[1:] {
		dest.Push(item)
	}

	// Limpiamos las referencias para que el GC pueda liberar
	clear(q.items[:n])
	q.items = q.items[n:]
	q.inflight.Add(int64(n))

	return first, Success
}

// Done marca como terminada una tarea obtenida de la cola.
func (q *Injector[T]) Done() {
	q.inflight.Add(-1)
}

// Worker es la cola FIFO privada de un worker. No es segura para uso
// concurrente: solo la toca su dueño.
type Worker[T any] struct {
	items []T
}

// NewWorker crea una cola local FIFO vacía.
func NewWorker[T any]() *Worker[T] {
	return &Worker[T]{}
}

// Push añade al final.
func (w *Worker[T]) Push(item T) {
	w.items = append(w.items, item)
}

// Pop saca del principio.
func (w *Worker[T]) Pop() (T, bool) {
	var zero T
	if len(w.items) == 0 {
		return zero, false
	}
	item := w.items[0]
	w.items[0] = zero
	w.items = w.items[1:]
	return item, true
}


// FindTask saca de la cola local; si está vacía, roba de la global
// reintentando con espera creciente mientras el robo diga Retry. Devuelve
// false cuando ya no queda trabajo.
func FindTask[T any](local *Worker[T], global Global[T]) (T, bool) {
	if item, ok := local.Pop(); ok {
		return item, true
	}

	var b backoff
	for {
		item, res := global.StealBatchAndPop(local)
		switch res {
		case Success:
			return item, true
		case Empty:
			var zero T
			return zero, false
		default:
			b.wait()
		}
	}
}

type backoff struct {
	spins int
	delay time.Duration
}

// next devuelve cuánto dormir en el siguiente reintento; 0 = solo Gosched.
func (b *backoff) next() time.Duration {
	if b.spins < spinLimit {
		b.spins++
		return 0
	}
	switch {
	case b.delay == 0:
		b.delay = minBackoff
	case b.delay < maxBackoff:
		b.delay = min(b.delay*2, maxBackoff)
	}
	return b.delay
}

func (b *backoff) wait() {
	if d := b.next(); d > 0 {
		time.Sleep(d)
		return
	}
	runtime.Gosched()
}
