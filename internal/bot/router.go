package bot

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
)

// Router — точка входа для входящих сообщений. Сериализует обработку
// по отправителю: два конкурентных сообщения одного клиента никогда
// не перемежают мутации его сессии.
type Router struct {
	machine *StepMachine
	admin   *AdminHandler
	admins  map[string]struct{}

	botMetrics *metrics.BotMetrics
	logger     *log.Entry

	locks *keyedLocks
}

// NewRouter собирает роутер. adminIDs — whitelist отправителей,
// которым доступны команды с префиксом "/".
func NewRouter(
	machine *StepMachine,
	admin *AdminHandler,
	adminIDs []string,
	botMetrics *metrics.BotMetrics,
	logger *log.Entry,
) *Router {
	if logger == nil {
		logger = log.New().WithField("component", "router")
	}

	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			admins[id] = struct{}{}
		}
	}
	locks := newKeyedLocks()
	// approve мутирует чужую сессию — обязан брать тот же замок
	// клиента, что и Route
	if admin != nil {
		admin.customerLocks = locks
	}
	return &Router{
		machine:    machine,
		admin:      admin,
		admins:     admins,
		botMetrics: botMetrics,
		logger:     logger,
		locks:      locks,
	}
}

// IsAdmin сообщает, входит ли отправитель в whitelist.
func (r *Router) IsAdmin(senderID string) bool {
	_, ok := r.admins[senderID]
	return ok
}

// Route обрабатывает одно входящее сообщение и возвращает ответ.
// Никогда не паникует: любой сбой превращается в текст для отправителя.
func (r *Router) Route(ctx context.Context, senderID, message string) domain.Reply {
	lock := r.locks.lockFor(senderID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		if r.botMetrics != nil {
			r.botMetrics.RecordHandleDuration(time.Since(start))
		}
	}()

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return domain.TextReply{Text: textInvalidInput}
	}

	if strings.HasPrefix(trimmed, "/") {
		if !r.IsAdmin(senderID) {
			r.logger.WithField("sender_id", senderID).Warn("admin command from non-admin")
			r.recordMessage("customer")
			return domain.TextReply{Text: errorText(domain.ErrUnauthorized)}
		}
		r.recordMessage("admin")
		return r.admin.Handle(ctx, senderID, message)
	}

	// админ в середине двухфазного bulk add шлёт строки без префикса
	if r.IsAdmin(senderID) && r.inBulkAdd(senderID) {
		r.recordMessage("admin")
		return r.admin.Handle(ctx, senderID, message)
	}

	if isGlobalCommand(normalize(trimmed)) {
		r.recordMessage("global")
	} else {
		r.recordMessage("customer")
	}
	return r.machine.Handle(ctx, senderID, message)
}

func (r *Router) inBulkAdd(senderID string) bool {
	session, err := r.machine.sessions.Get(senderID)
	if err != nil {
		r.logger.WithError(err).WithField("sender_id", senderID).Warn("session lookup for bulk add failed")
		return false
	}
	return session.Step == domain.StepAdminBulkAdd
}

func (r *Router) recordMessage(kind string) {
	if r.botMetrics != nil {
		r.botMetrics.RecordMessageHandled(kind)
	}
}

func isGlobalCommand(msg string) bool {
	switch msg {
	case "menu", "help", "cart", "history":
		return true
	}
	return false
}
