// Package aggregate collects the fact candidates that feed one claim's
// reconciliation: it applies the run-selection policy and drops re-emissions.
package aggregate

import (
	"context"
	"sort"
	"strings"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/normalize"
	"github.com/ppiankov/factgate/internal/provider"
)

// Waiter throttles provider reads; keyed by provider name
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Options selects which runs feed a reconciliation
type Options struct {
	Policy model.Policy // Empty means latest-run
	RunID  string       // When set, only this run is considered
}

// Collection is the deduplicated candidate set for one claim
type Collection struct {
	ClaimID    string
	Candidates []model.FactCandidate
	RunIDs     []string // Sorted run ids that contributed candidates
	Duplicates int      // Re-emissions dropped
	Blank      int      // Null or blank values dropped
}

// Aggregator reads candidates from an injected provider
type Aggregator struct {
	provider provider.Provider
	limiter  Waiter
}

// New creates an Aggregator; limiter may be nil
func New(p provider.Provider, limiter Waiter) *Aggregator {
	return &Aggregator{provider: p, limiter: limiter}
}

// CheckPolicy fails fast on policies without an implementation
func CheckPolicy(policy model.Policy) error {
	switch policy {
	case "", model.PolicyLatestRun:
		return nil
	case model.PolicyBestPerDoc:
		return errors.UnsupportedPolicy(string(policy), string(model.PolicyLatestRun))
	default:
		return errors.NewConfigError("policy",
			"unknown reconciliation policy "+string(policy)+"; use "+string(model.PolicyLatestRun), nil)
	}
}

// Collect returns the candidates for claimID under opts.
// A claim with no extraction output yields an empty collection, not an error.
func (a *Aggregator) Collect(ctx context.Context, claimID string, opts Options) (*Collection, error) {
	if err := CheckPolicy(opts.Policy); err != nil {
		return nil, err
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, a.provider.Name()); err != nil {
			return nil, err
		}
	}

	raw, err := a.provider.Collect(ctx, claimID)
	if err != nil {
		if errors.KindOf(err) == errors.KindNone && ctx.Err() == nil {
			err = errors.Wrap(errors.KindProviderIO, claimID, "collect candidates", err)
		}
		return nil, err
	}

	var selected []model.FactCandidate
	if opts.RunID != "" {
		selected = FilterRun(raw, opts.RunID)
	} else {
		selected = SelectLatestRuns(raw)
	}

	present, blank := DropBlank(selected)
	unique, dupes := Dedupe(present)

	col := &Collection{
		ClaimID:    claimID,
		Candidates: unique,
		RunIDs:     RunIDs(unique),
		Duplicates: dupes,
		Blank:      blank,
	}

	logging.FromContext(ctx).Debug().
		Str("claim_id", claimID).
		Int("read", len(raw)).
		Int("candidates", len(unique)).
		Int("duplicates", dupes).
		Int("blank", blank).
		Strs("run_ids", col.RunIDs).
		Msg("collected candidates")

	return col, nil
}

// FilterRun keeps only candidates produced by runID
func FilterRun(candidates []model.FactCandidate, runID string) []model.FactCandidate {
	out := make([]model.FactCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Source.RunID == runID {
			out = append(out, c)
		}
	}
	return out
}

// SelectLatestRuns keeps, per document, only candidates from the run with the
// latest extraction timestamp. Equal timestamps resolve to the greatest run id.
func SelectLatestRuns(candidates []model.FactCandidate) []model.FactCandidate {
	latest := make(map[string]model.SourceDocument)
	for _, c := range candidates {
		cur, seen := latest[c.Source.DocumentID]
		if !seen || newerRun(c.Source, cur) {
			latest[c.Source.DocumentID] = c.Source
		}
	}

	out := make([]model.FactCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Source.RunID == latest[c.Source.DocumentID].RunID {
			out = append(out, c)
		}
	}
	return out
}

func newerRun(a, b model.SourceDocument) bool {
	if !a.ExtractedAt.Equal(b.ExtractedAt) {
		return a.ExtractedAt.After(b.ExtractedAt)
	}
	return a.RunID > b.RunID
}

// DropBlank removes candidates whose value is null or only whitespace.
// Extractors report an absent fact this way; it is not a competing value.
func DropBlank(candidates []model.FactCandidate) ([]model.FactCandidate, int) {
	out := make([]model.FactCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.RawValue == nil || strings.TrimSpace(normalize.RawString(c.RawValue)) == "" {
			continue
		}
		out = append(out, c)
	}
	return out, len(candidates) - len(out)
}

// Dedupe drops candidates repeating a (document, run, fact name) triple.
// The survivor has the highest confidence, then the lexically smallest raw
// value, so the result does not depend on provider row order. Output is
// sorted by that triple.
func Dedupe(candidates []model.FactCandidate) ([]model.FactCandidate, int) {
	best := make(map[string]model.FactCandidate, len(candidates))
	for _, c := range candidates {
		key := c.DedupeKey()
		if cur, seen := best[key]; !seen || preferred(c, cur) {
			best[key] = c
		}
	}

	keys := make([]string, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]model.FactCandidate, 0, len(keys))
	for _, key := range keys {
		out = append(out, best[key])
	}
	return out, len(candidates) - len(out)
}

// preferred reports whether a should replace b as the surviving re-emission
func preferred(a, b model.FactCandidate) bool {
	ac, aok := confidence(a)
	bc, bok := confidence(b)
	if aok != bok {
		return aok
	}
	if ac != bc {
		return ac > bc
	}
	ar, br := normalize.RawString(a.RawValue), normalize.RawString(b.RawValue)
	if ar != br {
		return ar < br
	}
	return a.Source.DocumentType < b.Source.DocumentType
}

func confidence(c model.FactCandidate) (float64, bool) {
	if c.Confidence != nil {
		return *c.Confidence, true
	}
	if c.Source.DocumentConfidence != nil {
		return *c.Source.DocumentConfidence, true
	}
	return 0, false
}

// RunIDs returns the distinct run ids among candidates, sorted
func RunIDs(candidates []model.FactCandidate) []string {
	set := make(map[string]bool)
	for _, c := range candidates {
		set[c.Source.RunID] = true
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
