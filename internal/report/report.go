// Package report deduplicates handler errors and DMs the bot owner a
// short identifier for each distinct one.
package report

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Entry is one distinct error, identified by scope and message.
type Entry struct {
	ID       string
	Scope    string
	Message  string
	Count    int
	LastSeen time.Time
}

type Reporter struct {
	api     sender
	ownerID int64
	debug   bool
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]*Entry
}

func NewReporter(api sender, ownerID int64, debug bool, logger *slog.Logger) *Reporter {
	return &Reporter{
		api:     api,
		ownerID: ownerID,
		debug:   debug,
		logger:  logger,
		seen:    make(map[string]*Entry),
	}
}

// identifier derives a stable 5 letter tag from the dedup key, so the
// same error always reports under the same name.
func identifier(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	sum := h.Sum32()
	out := make([]byte, 5)
	for i := range out {
		out[i] = byte('A' + sum%26)
		sum /= 26
	}
	return string(out)
}

// Report records err. The first occurrence is forwarded to the owner;
// repeats only bump the counter.
func (r *Reporter) Report(ctx context.Context, scope string, err error) {
	if err == nil {
		return
	}
	key := scope + "|" + err.Error()

	r.mu.Lock()
	entry, known := r.seen[key]
	if known {
		entry.Count++
		entry.LastSeen = time.Now()
		r.mu.Unlock()
		return
	}
	entry = &Entry{
		ID:       identifier(key),
		Scope:    scope,
		Message:  err.Error(),
		Count:    1,
		LastSeen: time.Now(),
	}
	r.seen[key] = entry
	r.mu.Unlock()

	r.logger.Error("new error recorded", "id", entry.ID, "scope", scope, "error", err)
	if r.ownerID == 0 {
		return
	}
	text := fmt.Sprintf("Error %s in %s:\n%s", entry.ID, scope, err.Error())
	if r.debug {
		text += "\n\nDebug mode is on, this error was also written to the process log."
	}
	if _, sendErr := r.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: r.ownerID,
		Text:   text,
	}); sendErr != nil {
		r.logger.Warn("failed to DM error report", "error", sendErr)
	}
}

// Recent lists recorded errors, most recent first.
func (r *Reporter) Recent() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.seen))
	for _, e := range r.seen {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}
