package file

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// auditLogFile пишет аудит складских операций в JSON Lines файл:
// одна запись — одна строка, файл только дописывается.
type auditLogFile struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog создаёт файловый журнал аудита по пути path.
func NewAuditLog(path string) domain.AuditLog {
	return &auditLogFile{path: path}
}

// Record дописывает запись в конец файла.
func (a *auditLogFile) Record(entry domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

var _ domain.AuditLog = (*auditLogFile)(nil)
