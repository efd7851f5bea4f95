// Package pubsub 进程内的类型化发布订阅
package pubsub

import "sync"

// Broker 将消息广播给所有订阅者
// 订阅者消费过慢时丢弃消息，发布方永不阻塞
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	nextID int
	size   int
	closed bool
}

// NewBroker size 为每个订阅者的缓冲长度
func NewBroker[T any](size int) *Broker[T] {
	if size <= 0 {
		size = 16
	}
	return &Broker[T]{subs: make(map[int]chan T), size: size}
}

// Subscribe 返回消息通道和取消订阅函数，取消后通道被关闭
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.size)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish 广播消息，返回被丢弃的订阅者数量
func (b *Broker[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var dropped int
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return dropped
}

// Len 当前订阅者数量
func (b *Broker[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭所有订阅
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
