package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/ai-cost-optimizer/internal/keywords"
)

// ErrMalformedCandidate is returned by scorers that cannot interpret the candidate text
var ErrMalformedCandidate = errors.New("malformed candidate text")

// riskSignals are word stems that suggest content worth a paid analysis
var riskSignals = []string{
	"risk", "regulat", "complian", "breach", "exposure", "vulnerab", "penalt", "fine",
	"lawsuit", "litigat", "incident", "threat", "audit", "governance", "sanction",
	"investigat", "disrupt", "shortage", "default", "downgrade", "recall", "fraud",
	"cyber", "attack", "supplier", "esg", "climate", "volatil", "loss", "impair",
}

const (
	lengthWeight     = 30
	lengthSaturation = 150
	signalWeight     = 12
	maxSignalScore   = 60
	criticalBonus    = 10
)

// HeuristicScorer is the cheap lexical pre-filter. It never calls out and is deterministic.
type HeuristicScorer struct{}

// NewHeuristicScorer creates the default pre-filter scorer
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score rates the candidate between 0 and 100
func (s *HeuristicScorer) Score(text string, criticalKeywords []string) (int, error) {
	if !utf8.ValidString(text) {
		return 0, ErrMalformedCandidate
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0, nil
	}

	n := len(tokens)
	if n > lengthSaturation {
		n = lengthSaturation
	}
	score := n * lengthWeight / lengthSaturation

	matched := make(map[string]struct{})
	for _, tok := range tokens {
		for _, stem := range riskSignals {
			if strings.HasPrefix(tok, stem) {
				matched[stem] = struct{}{}
			}
		}
	}
	signals := len(matched) * signalWeight
	if signals > maxSignalScore {
		signals = maxSignalScore
	}
	score += signals

	if _, ok := keywords.Contains(text, criticalKeywords); ok {
		score += criticalBonus
	}
	return clampInt(score, 0, 100), nil
}

// ShouldProceed decides whether a scored candidate goes on to analysis.
// A critical keyword always wins over the numeric threshold.
func ShouldProceed(score, threshold int, text string, criticalKeywords []string) bool {
	_, critical := keywords.Contains(text, criticalKeywords)
	return proceed(score, threshold, critical)
}

func proceed(score, threshold int, critical bool) bool {
	return critical || score >= threshold
}

// PrefilterVerdict is the outcome of the pre-filter stage
type PrefilterVerdict struct {
	Proceed       bool
	Score         *int
	CriticalMatch string
	Err           error
}

// RunPrefilter applies the pre-filter stage with fail-open semantics.
// When the pre-filter is disabled the score is not computed.
func RunPrefilter(cfg OptimizationConfig, scorer Scorer, text string) PrefilterVerdict {
	if !cfg.EnablePrefilter {
		return PrefilterVerdict{Proceed: true}
	}

	if kw, ok := keywords.Contains(text, cfg.CriticalKeywords); ok {
		verdict := PrefilterVerdict{Proceed: true, CriticalMatch: kw}
		if score, err := safeScore(scorer, text, cfg.CriticalKeywords); err == nil {
			verdict.Score = &score
		}
		return verdict
	}

	score, err := safeScore(scorer, text, cfg.CriticalKeywords)
	if err != nil {
		return PrefilterVerdict{Proceed: true, Err: err}
	}
	return PrefilterVerdict{
		Proceed: proceed(score, cfg.PrefilterThreshold, false),
		Score:   &score,
	}
}

func safeScore(scorer Scorer, text string, criticalKeywords []string) (score int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panicked: %v", r)
		}
	}()
	score, err = scorer.Score(text, criticalKeywords)
	if err != nil {
		return 0, err
	}
	return clampInt(score, 0, 100), nil
}

// Tokenize lowercases text and splits it into letter/digit runs
func Tokenize(text string) []string {
	return strings.FieldsFunc(NormalizeText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
