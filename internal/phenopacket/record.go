// Package phenopacket loads and queries GA4GH Phenopacket JSON documents.
//
// Only the minimal structure needed for phenotype evaluation is validated:
// the document must be a JSON object carrying a "phenotypicFeatures" array
// whose entries each hold a "type" object with an ontology "id" (e.g.
// "HP:0000256") and a human-readable "label" (e.g. "Macrocephaly").
// Full GA4GH schema conformance is out of scope.
package phenopacket

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Record is an immutable view over a parsed phenopacket document. The
// record exclusively owns its backing document: it deep-copies its input at
// construction and every export, so neither caller mutation of the source
// nor mutation of an exported copy can change what the accessors return.
type Record struct {
	doc      map[string]any
	features []any
}

// FromDocument validates an in-memory JSON object and wraps it in a Record.
// The document must contain a phenotypicFeatures array; entries themselves
// are checked lazily by the accessors so that a single malformed feature
// does not reject an otherwise usable record.
func FromDocument(doc map[string]any) (*Record, error) {
	if doc == nil {
		return nil, fmt.Errorf("phenopacket document is nil: %w", ErrSchema)
	}
	raw, ok := doc["phenotypicFeatures"]
	if !ok {
		return nil, fmt.Errorf("document has no phenotypicFeatures collection: %w", ErrSchema)
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("phenotypicFeatures is not an array: %w", ErrSchema)
	}

	owned := deepCopyValue(doc).(map[string]any)
	return &Record{
		doc:      owned,
		features: owned["phenotypicFeatures"].([]any),
	}, nil
}

// LoadFromFile reads and parses a phenopacket JSON file. It returns an
// error wrapping ErrParse when the file is not valid JSON, an error
// wrapping ErrSchema when the JSON lacks the minimal phenopacket
// structure, and the underlying I/O error when the file cannot be read.
// No partial record is ever returned.
func LoadFromFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading phenopacket %s: %w", path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing phenopacket %s: %v: %w", path, err, ErrParse)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("phenopacket %s is not a JSON object: %w", path, ErrSchema)
	}

	rec, err := FromDocument(obj)
	if err != nil {
		return nil, fmt.Errorf("phenopacket %s: %w", path, err)
	}
	return rec, nil
}

// CountPhenotypes returns the number of phenotypic-feature entries.
func (r *Record) CountPhenotypes() int {
	return len(r.features)
}

// ListPhenotypes returns the human-readable label of every feature in
// document order. Duplicates are preserved; a document may legitimately
// list the same label twice under different evidence. Malformed entries
// are skipped with a warning.
func (r *Record) ListPhenotypes() []string {
	labels := make([]string, 0, len(r.features))
	for _, feat := range r.features {
		term, ok := featureTerm(feat)
		if !ok {
			continue
		}
		label, ok := term["label"].(string)
		if !ok {
			logrus.Warn("skipping malformed phenotypicFeature: missing type.label")
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

// ListPhenotypeIDs returns the ontology identifier of every feature in
// document order, skipping malformed entries.
func (r *Record) ListPhenotypeIDs() []string {
	ids := make([]string, 0, len(r.features))
	for _, feat := range r.features {
		term, ok := featureTerm(feat)
		if !ok {
			continue
		}
		id, ok := term["id"].(string)
		if !ok {
			logrus.Warn("skipping malformed phenotypicFeature: missing type.id")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ContainsPhenotype reports whether any feature's label is an exact,
// case-sensitive match. Callers wanting ontology-aware or case-folded
// matching must normalize before calling; see ContainsPhenotypeID for the
// identifier-based alternative.
func (r *Record) ContainsPhenotype(label string) bool {
	for _, feat := range r.features {
		if term, ok := featureTerm(feat); ok && term["label"] == label {
			return true
		}
	}
	return false
}

// ContainsPhenotypeID reports whether any feature carries the given
// ontology identifier, e.g. "HP:0001250".
func (r *Record) ContainsPhenotypeID(id string) bool {
	for _, feat := range r.features {
		if term, ok := featureTerm(feat); ok && term["id"] == id {
			return true
		}
	}
	return false
}

// ToDocument exports a deep, independent copy of the underlying document.
// Mutating the returned value never affects the record or any previously
// exported copy.
func (r *Record) ToDocument() map[string]any {
	return deepCopyValue(r.doc).(map[string]any)
}

func (r *Record) String() string {
	return fmt.Sprintf("Phenopacket with %d phenotypic features", len(r.features))
}

// featureTerm extracts the "type" object of a feature entry. Entries that
// are not objects, or that carry no object-valued "type", are reported as
// malformed.
func featureTerm(feat any) (map[string]any, bool) {
	obj, ok := feat.(map[string]any)
	if !ok {
		logrus.Warn("skipping malformed phenotypicFeature: not an object")
		return nil, false
	}
	term, ok := obj["type"].(map[string]any)
	if !ok {
		logrus.Warn("skipping malformed phenotypicFeature: no type object")
		return nil, false
	}
	return term, true
}

// deepCopyValue copies the JSON value graph produced by encoding/json
// (maps, slices and scalars). Scalars are immutable and shared as-is.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopyValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopyValue(val)
		}
		return s
	default:
		return v
	}
}
