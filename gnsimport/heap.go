/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import "container/heap"

// ExpiryHeap is a min-heap of requests keyed by Expires. Only the
// dispatcher goroutine touches it.
type ExpiryHeap struct {
	reqs reqHeap
}

type reqHeap []*Request

func (h reqHeap) Len() int           { return len(h) }
func (h reqHeap) Less(i, j int) bool { return h[i].Expires.Before(h[j].Expires) }

func (h reqHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *reqHeap) Push(x any) {
	req := x.(*Request)
	req.index = len(*h)
	*h = append(*h, req)
}

func (h *reqHeap) Pop() any {
	old := *h
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	req.index = -1
	*h = old[:n-1]
	return req
}

func (eh *ExpiryHeap) Len() int { return len(eh.reqs) }

func (eh *ExpiryHeap) Insert(req *Request) {
	heap.Push(&eh.reqs, req)
}

// Peek returns the request with the earliest expiration without
// removing it, or nil when the heap is empty.
func (eh *ExpiryHeap) Peek() *Request {
	if len(eh.reqs) == 0 {
		return nil
	}
	return eh.reqs[0]
}

func (eh *ExpiryHeap) PopRoot() *Request {
	if len(eh.reqs) == 0 {
		return nil
	}
	return heap.Pop(&eh.reqs).(*Request)
}

// Remove takes a request out of the heap wherever it sits. A request
// that is not on the heap (index < 0) is left alone.
func (eh *ExpiryHeap) Remove(req *Request) {
	if req.index < 0 || req.index >= len(eh.reqs) || eh.reqs[req.index] != req {
		return
	}
	heap.Remove(&eh.reqs, req.index)
}
