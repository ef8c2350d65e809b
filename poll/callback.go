package poll

// callbackPoller is the portable fallback backend: it holds TypeCallback
// pollables and, on each Poll, simply invokes every callback and reports
// the ones that claim readiness. Used on non-Linux builds and for
// TypeLayer/TypeZMQ/TypeHandle sources the epoll backend can't register
// directly.
type callbackPoller struct {
	pollables map[int]*Pollable
	nextID    int
}

// NewCallbackPoller returns a Poller that services TypeCallback (and
// TypeLayer) pollables by invoking their Callback function on every Poll
// call instead of blocking on an OS readiness primitive.
func NewCallbackPoller() Poller {
	return &callbackPoller{pollables: make(map[int]*Pollable)}
}

func (p *callbackPoller) Add(pb *Pollable) (int, error) {
	if pb.Callback == nil {
		return 0, errNoCallback
	}
	p.nextID++
	id := p.nextID
	p.pollables[id] = pb
	return id, nil
}

func (p *callbackPoller) Remove(id int) error {
	if _, ok := p.pollables[id]; !ok {
		return errNotRegistered
	}
	delete(p.pollables, id)
	return nil
}

func (p *callbackPoller) Reserve(n int) {
	if p.pollables == nil {
		p.pollables = make(map[int]*Pollable, n)
	}
}

func (p *callbackPoller) Poll(timeoutMillis int) ([]*Pollable, error) {
	var ready []*Pollable
	for _, pb := range p.pollables {
		observed := pb.Callback()
		pb.Observed = observed
		if observed&pb.Requested != 0 {
			ready = append(ready, pb)
		}
	}
	return ready, nil
}

func (p *callbackPoller) Close() error { return nil }
