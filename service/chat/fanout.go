package chat

import "sync"

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout delivers one payload to many connections through a worker pool.
// Sends are non-blocking; a slow client skips the frame instead of
// stalling the broadcast. With a single worker, jobs reach every
// connection in submission order.
type Fanout struct {
	jobs     chan fanoutJob
	done     chan struct{}
	stopOnce sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{
		jobs: make(chan fanoutJob, queue),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-f.jobs:
					for _, c := range job.conns {
						c.Deliver(job.payload)
					}
				case <-f.done:
					return
				}
			}
		}()
	}
	return f
}

func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	case <-f.done:
	}
}

func (f *Fanout) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}
