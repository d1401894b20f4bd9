// Package reconcile merges a claim's fact candidates into one value per fact
// name and records every disagreement that survives normalization.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/normalize"
)

// Engine selects winning values. It holds no per-claim state and is safe for
// concurrent use.
type Engine struct {
	normalizer *normalize.Normalizer
	priority   map[string]int // document type -> rank, 0 is highest
}

// NewEngine creates an engine. documentPriority lists document types from
// most to least trusted; unlisted types rank below all listed ones.
func NewEngine(n *normalize.Normalizer, documentPriority []string) *Engine {
	if n == nil {
		n = normalize.New(nil)
	}
	priority := make(map[string]int, len(documentPriority))
	for i, docType := range documentPriority {
		if _, dup := priority[docType]; !dup {
			priority[docType] = i
		}
	}
	return &Engine{normalizer: n, priority: priority}
}

// Reconcile builds the claim-level fact set and its conflicts.
// Disagreement is data; the only error is a malformed candidate.
func (e *Engine) Reconcile(claimID string, candidates []model.FactCandidate) (model.ClaimFacts, []model.FactConflict, error) {
	groups := make(map[string][]model.FactProvenance)
	for i, c := range candidates {
		if err := validate(i, c); err != nil {
			err.ClaimID = claimID
			return model.ClaimFacts{}, nil, err
		}
		raw := normalize.RawString(c.RawValue)
		_, norm := e.normalizer.Normalize(c.FactName, raw)
		groups[c.FactName] = append(groups[c.FactName], model.FactProvenance{
			SourceDocument:  c.Source,
			RawValue:        raw,
			NormalizedValue: norm,
			Confidence:      c.Confidence,
		})
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	facts := model.ClaimFacts{
		ClaimID: claimID,
		Facts:   make(map[string]model.AggregatedFact, len(names)),
		RunIDs:  runIDs(candidates),
	}
	conflicts := []model.FactConflict{}

	for _, name := range names {
		fact, conflict := e.resolve(name, groups[name])
		facts.Facts[name] = fact
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}
	return facts, conflicts, nil
}

func validate(i int, c model.FactCandidate) *errors.ReconcileError {
	if strings.TrimSpace(c.FactName) == "" {
		return errors.InputDefect("candidate %d has no fact name", i)
	}
	if c.Source.DocumentID == "" || c.Source.RunID == "" {
		return errors.InputDefect("candidate %d (%s) has empty provenance", i, c.FactName)
	}
	return nil
}

// valueGroup is every provenance entry sharing one normalized value
type valueGroup struct {
	value      string
	provenance []model.FactProvenance
	rank       int
	latest     time.Time
	confidence float64
	hasConf    bool
}

func (e *Engine) resolve(name string, provenance []model.FactProvenance) (model.AggregatedFact, *model.FactConflict) {
	byValue := make(map[string]*valueGroup)
	for _, p := range provenance {
		g, ok := byValue[p.NormalizedValue]
		if !ok {
			g = &valueGroup{value: p.NormalizedValue, rank: len(e.priority)}
			byValue[p.NormalizedValue] = g
		}
		g.provenance = append(g.provenance, p)
		if r := e.rank(p.DocumentType); r < g.rank {
			g.rank = r
		}
		if p.ExtractedAt.After(g.latest) {
			g.latest = p.ExtractedAt
		}
		if c, ok := p.EffectiveConfidence(); ok && (!g.hasConf || c > g.confidence) {
			g.confidence, g.hasConf = c, true
		}
	}

	ranked := make([]*valueGroup, 0, len(byValue))
	for _, g := range byValue {
		sortProvenance(g.provenance)
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		cmp, _ := compareGroups(ranked[i], ranked[j])
		return cmp < 0
	})
	winner := ranked[0]

	all := append([]model.FactProvenance(nil), provenance...)
	sortProvenance(all)

	fact := model.AggregatedFact{
		FactName:       name,
		FactType:       e.normalizer.TypeOf(name),
		Value:          winner.value,
		RawValue:       e.representative(winner.provenance),
		HasConflict:    len(ranked) > 1,
		DistinctValues: len(ranked),
		Provenance:     all,
	}
	if winner.hasConf {
		fact.Confidence = model.Float(winner.confidence)
	}

	if len(ranked) == 1 {
		return fact, nil
	}

	_, resolution := compareGroups(ranked[0], ranked[1])
	conflict := &model.FactConflict{
		FactName:      name,
		Values:        make([]model.ConflictValue, 0, len(ranked)),
		SelectedValue: winner.value,
		Resolution:    resolution,
	}
	for _, g := range ranked {
		conflict.Values = append(conflict.Values, model.ConflictValue{Value: g.value, Provenance: g.provenance})
	}
	return fact, conflict
}

func (e *Engine) rank(docType string) int {
	if r, ok := e.priority[docType]; ok {
		return r
	}
	return len(e.priority)
}

// compareGroups orders a before b (negative) when a should win, and names the
// first rule that separated them
func compareGroups(a, b *valueGroup) (int, model.Resolution) {
	if a.rank != b.rank {
		return sign(a.rank < b.rank), model.ResolutionDocumentPriority
	}
	if !a.latest.Equal(b.latest) {
		return sign(a.latest.After(b.latest)), model.ResolutionRecency
	}
	if ac, bc := confOrFloor(a.confidence, a.hasConf), confOrFloor(b.confidence, b.hasConf); ac != bc {
		return sign(ac > bc), model.ResolutionConfidence
	}
	if len(a.provenance) != len(b.provenance) {
		return sign(len(a.provenance) > len(b.provenance)), model.ResolutionMajority
	}
	return strings.Compare(a.value, b.value), model.ResolutionLexical
}

// representative picks the raw value shown for the winner using the same
// ordering as value selection, then raw text
func (e *Engine) representative(provenance []model.FactProvenance) string {
	best := provenance[0]
	for _, p := range provenance[1:] {
		if e.betterRaw(p, best) {
			best = p
		}
	}
	return best.RawValue
}

func (e *Engine) betterRaw(a, b model.FactProvenance) bool {
	if ra, rb := e.rank(a.DocumentType), e.rank(b.DocumentType); ra != rb {
		return ra < rb
	}
	if !a.ExtractedAt.Equal(b.ExtractedAt) {
		return a.ExtractedAt.After(b.ExtractedAt)
	}
	ac, aok := a.EffectiveConfidence()
	bc, bok := b.EffectiveConfidence()
	if x, y := confOrFloor(ac, aok), confOrFloor(bc, bok); x != y {
		return x > y
	}
	return a.RawValue < b.RawValue
}

// sortProvenance orders entries by document, run, then raw value, falling
// back to the remaining fields so equal keys still sort identically
func sortProvenance(p []model.FactProvenance) {
	sort.SliceStable(p, func(i, j int) bool {
		a, b := p[i], p[j]
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		if a.RawValue != b.RawValue {
			return a.RawValue < b.RawValue
		}
		if a.DocumentType != b.DocumentType {
			return a.DocumentType < b.DocumentType
		}
		if !a.ExtractedAt.Equal(b.ExtractedAt) {
			return a.ExtractedAt.Before(b.ExtractedAt)
		}
		ac, aok := a.EffectiveConfidence()
		bc, bok := b.EffectiveConfidence()
		return confOrFloor(ac, aok) < confOrFloor(bc, bok)
	})
}

// confOrFloor ranks a missing confidence below every reported one
func confOrFloor(c float64, ok bool) float64 {
	if !ok {
		return -1
	}
	return c
}

func sign(aWins bool) int {
	if aWins {
		return -1
	}
	return 1
}

func runIDs(candidates []model.FactCandidate) []string {
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
