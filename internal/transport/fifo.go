package transport

import (
	"sync"
)

type packet struct {
	source  string
	payload []byte
}

type fifoQueue struct {
	frames []packet
	count  int
	mutex  sync.Mutex
	notifs chan struct{}
}

func newFIFOQueue() *fifoQueue {
	q := &fifoQueue{
		notifs: make(chan struct{}, 1),
	}
	return q
}

func (q *fifoQueue) push(frame packet) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.frames = append(q.frames, frame)
	q.count++
	select {
	case q.notifs <- struct{}{}:
	default:
	}
}

func (q *fifoQueue) pop() (packet, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.count == 0 {
		return packet{}, false
	}
	frame := q.frames[0]
	q.frames[0] = packet{}
	q.frames = q.frames[1:]
	q.count--
	if q.count == 0 {
		q.frames = nil
	}
	return frame, true
}

func (q *fifoQueue) wait() <-chan struct{} {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.count > 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return q.notifs
}
