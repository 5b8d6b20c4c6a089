// Package evaluation accumulates phenotype-extraction accuracy counts
// across many samples. Comparison is set-based on human-readable labels:
// duplicate labels within a sample fold into one occurrence, and labels are
// trimmed and lowercased before matching. Ontology-aware normalization is a
// caller responsibility.
package evaluation

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/VarenyaJ/P5/internal/report"
)

// Evaluator accumulates true-positive, false-positive and false-negative
// counts across CheckPhenotypes calls. Counters only grow; producing a
// report never resets them. An Evaluator is not safe for concurrent use;
// give each worker its own and combine them with Merge, which is
// commutative and associative.
type Evaluator struct {
	tp int
	fp int
	fn int
}

// New returns an evaluator with all counters at zero.
func New() *Evaluator {
	return &Evaluator{}
}

// CheckPhenotypes compares one sample's predicted labels against its
// ground-truth labels and adds the sample's counts to the running totals.
// Both inputs are treated as sets:
//
//	TP += |predicted ∩ groundTruth|
//	FP += |predicted ∖ groundTruth|
//	FN += |groundTruth ∖ predicted|
//
// Two empty inputs are a no-op. True negatives are never counted; the
// domain has no fixed universe of phenotypes. Inputs are not mutated.
func (e *Evaluator) CheckPhenotypes(predicted, groundTruth []string) {
	truth := normalize(groundTruth)
	pred := normalize(predicted)

	var tp, fp, fn int
	for label := range pred {
		if _, ok := truth[label]; ok {
			tp++
		} else {
			fp++
		}
	}
	for label := range truth {
		if _, ok := pred[label]; !ok {
			fn++
		}
	}

	e.tp += tp
	e.fp += fp
	e.fn += fn

	logrus.WithFields(logrus.Fields{
		"tp": tp,
		"fp": fp,
		"fn": fn,
	}).Debug("sample evaluated")
}

// TruePositives returns the total true positives accumulated so far.
func (e *Evaluator) TruePositives() int { return e.tp }

// FalsePositives returns the total false positives accumulated so far.
func (e *Evaluator) FalsePositives() int { return e.fp }

// FalseNegatives returns the total false negatives accumulated so far.
func (e *Evaluator) FalseNegatives() int { return e.fn }

// Merge adds another evaluator's counts into this one. Partial evaluators
// from a parallel dataset scan merged pairwise equal a single evaluator
// run sequentially over the whole dataset.
func (e *Evaluator) Merge(other *Evaluator) {
	e.tp += other.tp
	e.fp += other.fp
	e.fn += other.fn
}

// Report snapshots the current counts and metadata into an immutable
// report. It is a pure read: calling it repeatedly on the same evaluator
// yields reports with ascending (or equal) counts.
func (e *Evaluator) Report(meta report.Metadata) (*report.Report, error) {
	return report.New(e.tp, e.fp, e.fn, meta)
}

// normalize folds a label sequence into a set, trimming surrounding
// whitespace and lowercasing so that cosmetic drift between extraction
// runs does not show up as disagreement.
func normalize(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		set[strings.ToLower(strings.TrimSpace(label))] = struct{}{}
	}
	return set
}
