package tools

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"ricordami/pkg/bus"
	"ricordami/pkg/logger"
	"ricordami/pkg/parser"
	"ricordami/pkg/reminders"
)

// ReminderTool is the command-surface adapter between free-form Italian
// text and the reminder engine: it tokenizes the first line, dispatches on
// the command keyword, and delegates scheduling semantics entirely to
// pkg/parser and pkg/reminders.
type ReminderTool struct {
	engine *reminders.Engine
	msgBus *bus.MessageBus
	clock  reminders.Clock

	mu      sync.Mutex
	channel string
	chatID  string
}

func NewReminderTool(engine *reminders.Engine, msgBus *bus.MessageBus, clock reminders.Clock) *ReminderTool {
	if clock == nil {
		clock = reminders.SystemClock{}
	}
	return &ReminderTool{engine: engine, msgBus: msgBus, clock: clock}
}

func (t *ReminderTool) Name() string { return "reminder" }

func (t *ReminderTool) Description() string {
	return "Crea, elenca o cancella promemoria a partire da un comando in italiano (ricordami / scordati / promemoria)."
}

func (t *ReminderTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Comando completo: prima riga con ricordami/scordati/promemoria, righe successive come testo del promemoria.",
			},
		},
		"required": []string{"text"},
	}
}

// SetContext implements ContextualTool.
func (t *ReminderTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = channel
	t.chatID = chatID
}

func (t *ReminderTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return ErrorResult("text is required")
	}

	t.mu.Lock()
	channel, chatID := t.channel, t.chatID
	t.mu.Unlock()
	userID := userIDFromChat(channel, chatID)
	if t.msgBus != nil && channel != "" && chatID != "" {
		t.msgBus.SetDestination(userID, channel, chatID)
	}

	firstLine, body := splitCommand(text)
	tokens := parser.Tokenize(firstLine)
	if len(tokens) == 0 {
		return ErrorResult("empty command")
	}

	switch tokens[0] {
	case "ricordami":
		return t.create(userID, tokens, body)
	case "scordati":
		return t.defuse(userID, tokens)
	case "promemoria":
		return t.read(userID, tokens)
	default:
		return ErrorResult(fmt.Sprintf("unrecognized command: %s", tokens[0]))
	}
}

func (t *ReminderTool) create(userID uint64, tokens []string, message string) *ToolResult {
	now := t.clock.Now()
	sched, ok := parser.Parse(tokens, now)
	if !ok {
		return ErrorResult("non ho capito quando ricordartelo")
	}
	if strings.TrimSpace(message) == "" {
		return ErrorResult("manca il testo del promemoria")
	}

	id, ok, err := t.engine.Add(userID, message, sched)
	if err != nil {
		logger.ErrorCF("reminder", "failed to add reminder", map[string]interface{}{"error": err.Error()})
		return ErrorResult("errore interno nel salvare il promemoria")
	}
	if !ok {
		return ErrorResult("questo promemoria non scatterebbe mai")
	}
	return SilentResult(fmt.Sprintf("Promemoria #%d creato: %s", id, message))
}

func (t *ReminderTool) defuse(userID uint64, tokens []string) *ToolResult {
	if len(tokens) < 2 {
		return ErrorResult("scordati richiede un id")
	}
	id, err := strconv.Atoi(tokens[1])
	if err != nil {
		return ErrorResult("id non valido")
	}
	if err := t.engine.Defuse(userID, int32(id)); err != nil {
		if errors.Is(err, reminders.ErrNotFound) {
			return SilentResult(fmt.Sprintf("Promemoria #%d non trovato", id))
		}
		logger.ErrorCF("reminder", "failed to defuse reminder", map[string]interface{}{"error": err.Error()})
		return ErrorResult("errore interno nel cancellare il promemoria")
	}
	return SilentResult(fmt.Sprintf("Promemoria #%d cancellato", id))
}

func (t *ReminderTool) read(userID uint64, tokens []string) *ToolResult {
	if len(tokens) >= 2 && tokens[1] != "miei" {
		id, err := strconv.Atoi(tokens[1])
		if err != nil {
			return ErrorResult("id non valido")
		}
		r, ok := t.engine.Get(userID, int32(id))
		if !ok {
			return SilentResult(fmt.Sprintf("Promemoria #%d non trovato", id))
		}
		return SilentResult(formatReminder(r))
	}

	all := t.engine.GetAll(userID)
	if len(all) == 0 {
		return SilentResult("Nessun promemoria attivo")
	}
	var lines []string
	for _, r := range all {
		lines = append(lines, formatReminder(r))
	}
	return SilentResult(strings.Join(lines, "\n"))
}

func formatReminder(r reminders.Reminder) string {
	if !r.HasTick {
		return fmt.Sprintf("#%d: %s (concluso)", r.ReminderID, r.Message)
	}
	return fmt.Sprintf("#%d: %s (prossimo: %s)", r.ReminderID, r.Message, r.CurrentTick.Format(time.RFC3339))
}

// splitCommand separates the first line (command + scheduling tokens) from
// the remaining lines, which form the reminder's message body.
func splitCommand(text string) (firstLine, body string) {
	idx := strings.IndexByte(text, '\n')
	if idx < 0 {
		return text, ""
	}
	return text[:idx], strings.TrimSpace(text[idx+1:])
}

// userIDFromChat derives a stable per-user namespace id from a channel and
// chat id pair with a 64-bit FNV-1a hash, so distinct chats get distinct ids
// unless their hashes collide. No identity system beyond this hash is
// assumed, matching the "per-user id namespace" boundary.
func userIDFromChat(channel, chatID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(channel))
	h.Write([]byte{0})
	h.Write([]byte(chatID))
	return h.Sum64()
}
