//go:build linux

package poll

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux backend, grounded in the vendored
// golang.org/x/sys/unix usage in the pack's ymm135-go example for raw
// epoll_create1/epoll_ctl/epoll_wait syscalls.
type epollPoller struct {
	mu        sync.Mutex
	epfd      int
	pollables map[int]*Pollable // keyed by fd
	nextID    int
}

// NewEpollPoller returns a Poller backed by epoll(7). Only TypeFd and
// TypeSocket pollables (anything with a real file descriptor) can be
// added; TypeCallback sources belong to NewCallbackPoller instead.
func NewEpollPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poll: epoll_create1: %w", err)
	}
	return &epollPoller{epfd: fd, pollables: make(map[int]*Pollable)}, nil
}

func toEpollEvents(e Events) uint32 {
	var out uint32
	if e&EventIn != 0 {
		out |= unix.EPOLLIN
	}
	if e&EventOut != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpollEvents(e uint32) Events {
	var out Events
	if e&unix.EPOLLIN != 0 {
		out |= EventIn
	}
	if e&unix.EPOLLOUT != 0 {
		out |= EventOut
	}
	if e&unix.EPOLLERR != 0 {
		out |= EventErr
	}
	if e&unix.EPOLLHUP != 0 {
		out |= EventHup
	}
	return out
}

func (p *epollPoller) Add(pb *Pollable) (int, error) {
	if pb.Type != TypeFd && pb.Type != TypeSocket {
		return 0, fmt.Errorf("poll: epoll backend cannot register %s pollables", pb.Type)
	}
	ev := unix.EpollEvent{Events: toEpollEvents(pb.Requested), Fd: int32(pb.Fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, pb.Fd, &ev); err != nil {
		return 0, fmt.Errorf("poll: epoll_ctl add: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollables[pb.Fd] = pb
	p.nextID++
	return pb.Fd, nil
}

func (p *epollPoller) Remove(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pollables[id]; !ok {
		return fmt.Errorf("poll: no pollable registered for id %d", id)
	}
	delete(p.pollables, id)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, id, nil)
}

func (p *epollPoller) Reserve(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pollables == nil {
		p.pollables = make(map[int]*Pollable, n)
	}
}

func (p *epollPoller) Poll(timeoutMillis int) ([]*Pollable, error) {
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(p.epfd, events, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("poll: epoll_wait: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ready := make([]*Pollable, 0, n)
	for i := 0; i < n; i++ {
		pb, ok := p.pollables[int(events[i].Fd)]
		if !ok {
			continue
		}
		pb.Observed = fromEpollEvents(events[i].Events)
		ready = append(ready, pb)
	}
	return ready, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
