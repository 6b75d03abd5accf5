package sse

import "sync"

// простой hub для SSE-событий по id запуска

var (
	mu   sync.Mutex
	subs = map[string][]chan []byte{}
)

// Subscribe подписывает клиента на id, возвращает канал и функцию-unsubscribe
func Subscribe(id string) (chan []byte, func()) {
	ch := make(chan []byte, 32)

	mu.Lock()
	subs[id] = append(subs[id], ch)
	mu.Unlock()

	cancel := func() {
		mu.Lock()
		defer mu.Unlock()
		list := subs[id]
		for i, c := range list {
			if c == ch {
				subs[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(subs[id]) == 0 {
			delete(subs, id)
		}
	}

	return ch, cancel
}

// Publish отсылает сообщение всем подписчикам id
func Publish(id string, msg []byte) {
	mu.Lock()
	list := append([]chan []byte(nil), subs[id]...)
	mu.Unlock()

	for _, ch := range list {
		select {
		case ch <- msg:
		default:
			// медленный клиент — сообщение пропускается
		}
	}
}
