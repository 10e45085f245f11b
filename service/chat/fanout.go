package chat

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout is a small worker pool for pushing one payload to many sessions.
// Delivery into each client's queue is non-blocking; a slow client drops
// the copy instead of stalling the pool.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					c.Enqueue(job.payload)
				}
			}
		}()
	}
	return f
}

// Broadcast queues the payload for every given session, fire-and-forget.
func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}
