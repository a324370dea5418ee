package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// credentialQueueFile — файловая FIFO-очередь: один файл `<productID>.txt`
// на товар, одна учётная запись на строку. Голова очереди — первая строка.
type credentialQueueFile struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCredentialQueue создаёт файловую очередь в каталоге dir.
func NewCredentialQueue(dir string) (domain.CredentialQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create stock dir: %w", err)
	}
	return &credentialQueueFile{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// lockFor возвращает мьютекс товара, создавая его при первом обращении.
// Pop выполняет чтение и перезапись файла, поэтому все операции над
// одним товаром сериализуются.
func (q *credentialQueueFile) lockFor(productID string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		q.locks[productID] = l
	}
	return l
}

func (q *credentialQueueFile) path(productID string) string {
	return filepath.Join(q.dir, productID+".txt")
}

// readLines возвращает непустые строки файла очереди.
// Отсутствующий файл трактуется как пустая очередь.
func (q *credentialQueueFile) readLines(productID string) ([]string, error) {
	data, err := os.ReadFile(q.path(productID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	raw := strings.Split(string(data), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimRight(line, "\r"); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}

// writeLines перезаписывает файл очереди атомарно: запись во временный
// файл в том же каталоге и rename поверх старого.
func (q *credentialQueueFile) writeLines(productID string, lines []string) error {
	target := q.path(productID)
	if len(lines) == 0 {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove empty queue file: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(q.dir, productID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp queue file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp queue file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace queue file: %w", err)
	}
	return nil
}

// Push добавляет записи в хвост очереди и возвращает новую длину.
func (q *credentialQueueFile) Push(productID string, credentials []string) (int, error) {
	lock := q.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	lines, err := q.readLines(productID)
	if err != nil {
		return 0, err
	}
	lines = append(lines, credentials...)
	if err := q.writeLines(productID, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Pop атомарно снимает голову очереди. Для пустой очереди возвращает
// ok=false без ошибки.
func (q *credentialQueueFile) Pop(productID string) (string, bool, error) {
	lock := q.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	lines, err := q.readLines(productID)
	if err != nil {
		return "", false, err
	}
	if len(lines) == 0 {
		return "", false, nil
	}

	head := lines[0]
	if err := q.writeLines(productID, lines[1:]); err != nil {
		return "", false, err
	}
	return head, true, nil
}

// PushFront возвращает записи в голову очереди с сохранением порядка.
func (q *credentialQueueFile) PushFront(productID string, credentials []string) error {
	if len(credentials) == 0 {
		return nil
	}

	lock := q.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	lines, err := q.readLines(productID)
	if err != nil {
		return err
	}
	merged := make([]string, 0, len(credentials)+len(lines))
	merged = append(merged, credentials...)
	merged = append(merged, lines...)
	return q.writeLines(productID, merged)
}

func (q *credentialQueueFile) Len(productID string) (int, error) {
	lock := q.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	lines, err := q.readLines(productID)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Lens возвращает длины всех непустых очередей по файлам каталога.
func (q *credentialQueueFile) Lens() (map[string]int, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("read stock dir: %w", err)
	}

	lens := make(map[string]int)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		productID := strings.TrimSuffix(name, ".txt")

		n, err := q.Len(productID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			lens[productID] = n
		}
	}
	return lens, nil
}

var _ domain.CredentialQueue = (*credentialQueueFile)(nil)
