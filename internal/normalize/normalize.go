// Package normalize maps raw extracted values to canonical comparable strings.
// Every function here is pure, and applying one to its own output returns the
// output unchanged.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"

	"github.com/ppiankov/factgate/internal/model"
)

// Suffix rules applied when a fact name has no explicit type
var suffixTypes = []struct {
	suffixes []string
	factType model.FactType
}{
	{[]string{"_date"}, model.FactTypeDate},
	{[]string{"_amount", "_total", "_cost", "_premium", "_deductible"}, model.FactTypeMoney},
	{[]string{"_number", "_name", "_address", "_description", "_type", "_status"}, model.FactTypeString},
}

// Normalizer resolves fact types and normalizes values.
// It is read-only after construction and safe for concurrent use.
type Normalizer struct {
	types map[string]model.FactType
}

// New creates a Normalizer with explicit fact-name to type overrides
func New(factTypes map[string]model.FactType) *Normalizer {
	types := make(map[string]model.FactType, len(factTypes))
	for name, ft := range factTypes {
		types[name] = ft
	}
	return &Normalizer{types: types}
}

// TypeOf returns the fact type used to compare values of factName
func (n *Normalizer) TypeOf(factName string) model.FactType {
	if ft, ok := n.types[factName]; ok {
		return ft
	}
	for _, rule := range suffixTypes {
		for _, suffix := range rule.suffixes {
			if strings.HasSuffix(factName, suffix) {
				return rule.factType
			}
		}
	}
	return model.FactTypeExact
}

// Normalize returns the fact type and normalized value for a raw value
func (n *Normalizer) Normalize(factName string, raw string) (model.FactType, string) {
	ft := n.TypeOf(factName)
	return ft, Value(ft, raw)
}

// Value normalizes raw according to ft
func Value(ft model.FactType, raw string) string {
	switch ft {
	case model.FactTypeString:
		return String(raw)
	case model.FactTypeMoney:
		if v, ok := Money(raw); ok {
			return v
		}
		return strings.TrimSpace(raw)
	case model.FactTypeDate:
		if v, ok := Date(raw); ok {
			return v
		}
		return strings.TrimSpace(raw)
	default:
		return raw
	}
}

// String case-folds s and collapses runs of whitespace to one space
func String(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// RawString renders an extracted value as text.
// Numbers keep their shortest exact decimal form; nil becomes "".
func RawString(v any) string {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return cast.ToString(v)
}
