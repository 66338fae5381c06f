// Package router implements the message router: event → intention →
// template variant → rendered text → dispatch → MessageLog (spec §4.7).
package router

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/notify"
	"github.com/aaronsb/screentimed/pkg/events"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// Store is the subset of the store the Router needs.
type Store interface {
	ListTemplates(ctx context.Context, intention string) ([]domain.MessageTemplate, error)
	AppendMessageLog(ctx context.Context, m domain.MessageLog) (int64, error)
}

// Dispatcher is the subset of notify.Dispatcher the Router needs.
type Dispatcher interface {
	Send(r notify.Rendered) (backend string, notificationID string, err error)
}

// VariantSelection chooses which enabled template variant to use when
// more than one is available for an intention.
type VariantSelection string

const (
	VariantRandom     VariantSelection = "random"
	VariantSequential VariantSelection = "sequential"
)

// Router turns an emitted Event into a delivered, logged notification.
type Router struct {
	store      Store
	dispatcher Dispatcher
	log        logger.Logger
	selection  VariantSelection

	seq map[string]int // intention -> next index, for sequential selection
}

// New constructs a Router. selection governs how the enabled variant
// is picked when more than one exists for an intention.
func New(store Store, dispatcher Dispatcher, log logger.Logger, selection VariantSelection) *Router {
	return &Router{store: store, dispatcher: dispatcher, log: log, selection: selection, seq: make(map[string]int)}
}

// Route processes one event: load enabled variants, pick one, render,
// dispatch, and persist the MessageLog row. A failure anywhere before
// dispatch (no templates, render error — there is none since missing
// keys render literally) returns an error; a dispatch failure is
// itself terminal for this call since LogOnly always succeeds, so a
// Dispatcher error here indicates a misconfigured chain.
func (r *Router) Route(ctx context.Context, ev events.Event) error {
	templates, err := r.store.ListTemplates(ctx, string(ev.Intention))
	if err != nil {
		return fmt.Errorf("load templates for %s: %w", ev.Intention, err)
	}
	if len(templates) == 0 {
		return fmt.Errorf("no enabled template variants for intention %s", ev.Intention)
	}

	tmpl := r.pickVariant(string(ev.Intention), templates)
	title := render(tmpl.Title, ev.TemplateVars)
	body := render(tmpl.Body, ev.TemplateVars)

	backend, notificationID, err := r.dispatcher.Send(notify.Rendered{
		User:    ev.User,
		Title:   title,
		Body:    body,
		Icon:    tmpl.Icon,
		Urgency: tmpl.Urgency,
	})
	if err != nil {
		return fmt.Errorf("dispatch %s to %s: %w", ev.Intention, ev.User, err)
	}

	_, err = r.store.AppendMessageLog(ctx, domain.MessageLog{
		Timestamp:      ev.Timestamp,
		User:           ev.User,
		Intention:      string(ev.Intention),
		TemplateID:     tmpl.ID,
		RenderedTitle:  title,
		RenderedBody:   body,
		Backend:        backend,
		NotificationID: notificationID,
	})
	if err != nil {
		r.log.Warn("append message log failed", "user", ev.User, "intention", ev.Intention, "error", err)
	}
	return nil
}

func (r *Router) pickVariant(intention string, templates []domain.MessageTemplate) domain.MessageTemplate {
	if len(templates) == 1 {
		return templates[0]
	}
	switch r.selection {
	case VariantSequential:
		idx := r.seq[intention] % len(templates)
		r.seq[intention] = idx + 1
		return templates[idx]
	default:
		return templates[rand.New(rand.NewSource(time.Now().UnixNano())).Intn(len(templates))]
	}
}

// render substitutes {{.name}}-style placeholders from vars. A missing
// key is left as the literal placeholder text rather than raising
// (spec §4.7).
func render(tmplText string, vars map[string]string) string {
	out := tmplText
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{."+k+"}}", v)
	}
	return out
}
