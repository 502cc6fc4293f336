package scheduler

import (
	"container/heap"
	"time"

	"github.com/hugolhafner/go-consume/read"
)

// delayedTask parks a task until the time its last step asked to resume at.
type delayedTask struct {
	task *read.Task
	at   time.Time
}

type delayHeap []*delayedTask

var _ heap.Interface = (*delayHeap)(nil)

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h delayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayHeap) Push(x any) {
	*h = append(*h, x.(*delayedTask))
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
