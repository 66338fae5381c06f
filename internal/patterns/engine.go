// Package patterns implements the rule base that turns a raw activity
// key into a category: the compiled-regex cache, match ordering, and
// the discovery pipeline that promotes repeatedly observed unknown
// activities into patterns.
package patterns

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// Match is the result of a successful classify call.
type Match struct {
	Pattern  domain.Pattern
	Category domain.Category
}

// compiled pairs a Pattern with its compiled regex, cached so classify
// never recompiles on the hot path.
type compiled struct {
	pattern domain.Pattern
	re      *regexp.Regexp
}

// Store is the subset of the store the Engine needs, narrowed so tests
// can supply a fake without pulling in sqlite.
type Store interface {
	ListAllPatterns(ctx context.Context) ([]domain.Pattern, error)
	RecordCandidateSample(ctx context.Context, owner string, patternType domain.PatternType, key string, runtimeDelta int64, at time.Time) (*domain.DiscoveryCandidate, error)
	PromoteDiscovery(ctx context.Context, cand domain.DiscoveryCandidate, category domain.Category, displayName string) (int64, error)
}

// Engine holds the compiled pattern cache and the discovery thresholds
// that govern when a candidate is promoted.
type Engine struct {
	store Store
	log   logger.Logger

	mu       sync.RWMutex
	byUser   map[string][]compiled // user-specific active patterns, ordered
	global   []compiled            // global active patterns, ordered
	inactive []compiled            // discovered/ignored, compiled but never consulted by Classify

	defaultMinSamples      int
	defaultSampleWindowSec int
}

// New constructs an Engine. defaultMinSamples/defaultSampleWindowSec
// apply to every discovery candidate (spec §4.2).
func New(store Store, log logger.Logger, defaultMinSamples, defaultSampleWindowSec int) *Engine {
	return &Engine{
		store:                  store,
		log:                    log,
		defaultMinSamples:      defaultMinSamples,
		defaultSampleWindowSec: defaultSampleWindowSec,
	}
}

// Reload rebuilds the compiled cache from the store. Called on startup
// and whenever the Daemon Loop observes the change-epoch advance
// (spec §4.10). A pattern whose regex fails to compile is skipped and
// logged rather than aborting the whole reload — one bad row must not
// blind the engine to every other pattern.
func (e *Engine) Reload(ctx context.Context) error {
	all, err := e.store.ListAllPatterns(ctx)
	if err != nil {
		return fmt.Errorf("reload patterns: %w", err)
	}

	byUser := make(map[string][]compiled)
	var global, inactive []compiled

	for _, p := range all {
		if !p.ParticipatesInEnforcement() {
			if re, err := regexp.Compile(p.Regex); err == nil {
				inactive = append(inactive, compiled{pattern: p, re: re})
			}
			continue
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			e.log.Warn("skipping pattern with invalid regex", "pattern_id", p.ID, "error", err)
			continue
		}
		c := compiled{pattern: p, re: re}
		if p.IsGlobal() {
			global = append(global, c)
		} else {
			byUser[p.Owner] = append(byUser[p.Owner], c)
		}
	}

	sortByPriorityThenID(global)
	for u := range byUser {
		sortByPriorityThenID(byUser[u])
	}

	e.mu.Lock()
	e.byUser, e.global, e.inactive = byUser, global, inactive
	e.mu.Unlock()
	return nil
}

func sortByPriorityThenID(c []compiled) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].pattern.Priority != c[j].pattern.Priority {
			return c[i].pattern.Priority < c[j].pattern.Priority
		}
		return c[i].pattern.ID < c[j].pattern.ID
	})
}

// Classify matches key against user's patterns: user-specific active
// first, then global active, first match within a partition wins
// (spec §4.2). Returns false if nothing matches.
func (e *Engine) Classify(user, key string) (Match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, c := range e.byUser[user] {
		if c.re.MatchString(key) {
			return Match{Pattern: c.pattern, Category: c.pattern.Category}, true
		}
	}
	for _, c := range e.global {
		if c.re.MatchString(key) {
			return Match{Pattern: c.pattern, Category: c.pattern.Category}, true
		}
	}
	return Match{}, false
}

// RecordObservation feeds an unclassified activity into the discovery
// pipeline, promoting it to a pattern once it crosses min_samples
// within sample_window_sec (spec §4.2). defaultCategory is the
// category a worker attributes to its own discoveries (e.g. Proton
// games default to gaming).
func (e *Engine) RecordObservation(ctx context.Context, owner string, patternType domain.PatternType, key string, runtimeDelta int64, defaultCategory domain.Category, at time.Time) error {
	cand, err := e.store.RecordCandidateSample(ctx, owner, patternType, key, runtimeDelta, at)
	if err != nil {
		return fmt.Errorf("record observation: %w", err)
	}

	if !cand.ReadyForPromotion(e.defaultMinSamples, e.defaultSampleWindowSec) {
		return nil
	}

	if _, err := e.store.PromoteDiscovery(ctx, *cand, defaultCategory, key); err != nil {
		return fmt.Errorf("promote discovery %s/%s: %w", owner, key, err)
	}
	e.log.Info("pattern discovered", "owner", owner, "key", key, "category", defaultCategory)
	return nil
}
