package core

import (
	"fmt"
	"sync"
	"time"
)

// similarityEpsilon absorbs float rounding so the configured threshold stays inclusive
const similarityEpsilon = 1e-9

// DefaultWindowSize caps how many recent contents each feature remembers
const DefaultWindowSize = 500

// WindowEntry is one recently analyzed content
type WindowEntry struct {
	Feature     Feature
	Fingerprint string
	Text        string
	CreatedAt   time.Time
	ExpiresAt   time.Time

	tokens map[string]struct{}
}

// DuplicateMatch points at the cached result a near-duplicate candidate may reuse
type DuplicateMatch struct {
	Fingerprint string
	Similarity  float64
	CreatedAt   time.Time
}

// ContentWindow is the feature-scoped, TTL-bounded record of recently analyzed contents
type ContentWindow struct {
	mu            sync.RWMutex
	entries       map[Feature][]*WindowEntry
	maxPerFeature int
	clock         Clock
}

// NewContentWindow creates an empty window. A non-positive size falls back to DefaultWindowSize.
func NewContentWindow(maxPerFeature int, clock Clock) *ContentWindow {
	if maxPerFeature <= 0 {
		maxPerFeature = DefaultWindowSize
	}
	if clock == nil {
		clock = SystemClock
	}
	return &ContentWindow{
		entries:       make(map[Feature][]*WindowEntry),
		maxPerFeature: maxPerFeature,
		clock:         clock,
	}
}

// Append records content whose analysis is cached under fingerprint
func (w *ContentWindow) Append(feature Feature, fingerprint, text string) {
	now := w.clock()
	normalized := NormalizeText(text)
	entry := &WindowEntry{
		Feature:     feature,
		Fingerprint: fingerprint,
		Text:        normalized,
		CreatedAt:   now,
		ExpiresAt:   now.Add(feature.TTL()),
		tokens:      tokenSet(normalized),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.entries[feature][:0]
	for _, e := range w.entries[feature] {
		if now.Before(e.ExpiresAt) {
			live = append(live, e)
		}
	}
	live = append(live, entry)
	if over := len(live) - w.maxPerFeature; over > 0 {
		live = append(live[:0:0], live[over:]...)
	}
	w.entries[feature] = live
}

// FindDuplicate returns the freshest live entry whose similarity to text reaches threshold
func (w *ContentWindow) FindDuplicate(feature Feature, text string, threshold float64) (*DuplicateMatch, bool) {
	now := w.clock()
	candidate := tokenSet(NormalizeText(text))

	w.mu.RLock()
	defer w.mu.RUnlock()

	var best *DuplicateMatch
	for _, e := range w.entries[feature] {
		if !now.Before(e.ExpiresAt) {
			continue
		}
		sim := setSimilarity(candidate, e.tokens)
		if sim+similarityEpsilon < threshold {
			continue
		}
		if best == nil || !e.CreatedAt.Before(best.CreatedAt) {
			best = &DuplicateMatch{Fingerprint: e.Fingerprint, Similarity: sim, CreatedAt: e.CreatedAt}
		}
	}
	return best, best != nil
}

// Clear forgets every entry of the feature, or of all features when feature is empty
func (w *ContentWindow) Clear(feature Feature) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if feature == "" {
		n := 0
		for f, entries := range w.entries {
			n += len(entries)
			delete(w.entries, f)
		}
		return n
	}
	n := len(w.entries[feature])
	delete(w.entries, feature)
	return n
}

// Len returns the number of live entries for the feature
func (w *ContentWindow) Len(feature Feature) int {
	now := w.clock()
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := 0
	for _, e := range w.entries[feature] {
		if now.Before(e.ExpiresAt) {
			n++
		}
	}
	return n
}

// Similarity is the Jaccard index of the two texts' token sets. Two texts without tokens are identical.
func Similarity(a, b string) float64 {
	return setSimilarity(tokenSet(NormalizeText(a)), tokenSet(NormalizeText(b)))
}

func setSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

func tokenSet(normalized string) map[string]struct{} {
	tokens := Tokenize(normalized)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// DedupVerdict is the outcome of the deduplication stage
type DedupVerdict struct {
	Match *DuplicateMatch
	Err   error
}

// RunDedup applies the deduplication stage with fail-open semantics
func RunDedup(cfg OptimizationConfig, window *ContentWindow, feature Feature, text string) (verdict DedupVerdict) {
	if !cfg.EnableDedup || window == nil {
		return DedupVerdict{}
	}
	defer func() {
		if r := recover(); r != nil {
			verdict = DedupVerdict{Err: fmt.Errorf("similarity scan panicked: %v", r)}
		}
	}()
	if match, ok := window.FindDuplicate(feature, text, cfg.DedupSimilarity); ok {
		return DedupVerdict{Match: match}
	}
	return DedupVerdict{}
}
