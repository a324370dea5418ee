package bot

import "sync"

// keyedLocks выдаёт по мьютексу на ключ отправителя. Router и approve
// делят один экземпляр: мутации сессии клиента идут под его замком
// независимо от того, кто их инициировал — сам клиент или админ.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) lockFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}
