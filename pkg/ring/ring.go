// Package ring 固定容量的环形队列，写满后覆盖最旧的元素
package ring

import "sync"

type Ring[T any] struct {
	m    sync.Mutex
	data []T
	head int
	size int
}

// New capacity 至少为 1
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// FromSlice 以已有数据初始化，超出容量时只保留末尾部分
func FromSlice[T any](capacity int, items []T) *Ring[T] {
	r := New[T](capacity)
	for _, v := range items {
		r.Push(v)
	}
	return r
}

func (r *Ring[T]) Push(v T) {
	r.m.Lock()
	defer r.m.Unlock()
	idx := (r.head + r.size) % len(r.data)
	r.data[idx] = v
	if r.size < len(r.data) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.data)
}

// Range 按写入顺序返回全部元素
func (r *Ring[T]) Range() []T {
	return r.Last(-1)
}

// Last 返回最新的 n 个元素（按写入顺序），n<0 表示全部
func (r *Ring[T]) Last(n int) []T {
	r.m.Lock()
	defer r.m.Unlock()
	if n < 0 || n > r.size {
		n = r.size
	}
	out := make([]T, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.data[(r.head+i)%len(r.data)])
	}
	return out
}

func (r *Ring[T]) Len() int {
	r.m.Lock()
	defer r.m.Unlock()
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.data)
}
