// Package report holds immutable evaluation reports: true/false
// positive/negative counts plus run metadata, with precision, recall and
// F1 derived on demand and JSON persistence for round-tripping.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Validation errors for report integrity.
var (
	ErrNegativeCount = errors.New("negative confusion count")
	ErrMissingCount  = errors.New("missing confusion count")
)

// Metadata describes the evaluation run a report belongs to.
type Metadata struct {
	Creator    string
	Experiment string
	Model      string
	Notes      string
	Extra      map[string]string
}

// Metrics are derived values, recomputable from the stored counts alone.
// Each metric is defined as 0 when its denominator is 0; the domain has no
// fixed universe of phenotypes, so true negatives are never counted and
// accuracy-style metrics are undefined.
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Report is an immutable snapshot of accumulated evaluation counts. Once
// constructed, the stored counts and metadata never change; Metrics is a
// pure function of the counts.
type Report struct {
	id        string
	tp        int
	fp        int
	fn        int
	meta      Metadata
	createdAt time.Time
}

// Snapshot is the exported flat form of a report, used by stores and
// anything else that needs to reconstruct one without going through JSON.
type Snapshot struct {
	ID             string
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Creator        string
	Experiment     string
	Model          string
	Notes          string
	Extra          map[string]string
	CreatedAt      time.Time
}

// New creates a report from accumulated counts. Counts must be
// non-negative; the extra metadata map is copied so later caller mutation
// cannot reach the report.
func New(tp, fp, fn int, meta Metadata) (*Report, error) {
	if err := validateCounts(tp, fp, fn); err != nil {
		return nil, err
	}
	meta.Extra = copyExtra(meta.Extra)
	return &Report{
		id:        uuid.NewString(),
		tp:        tp,
		fp:        fp,
		fn:        fn,
		meta:      meta,
		createdAt: time.Now().UTC(),
	}, nil
}

// FromSnapshot reconstructs a report from stored fields, validating the
// counts the same way New does. A missing ID gets a fresh one.
func FromSnapshot(s Snapshot) (*Report, error) {
	if err := validateCounts(s.TruePositives, s.FalsePositives, s.FalseNegatives); err != nil {
		return nil, err
	}
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Report{
		id: id,
		tp: s.TruePositives,
		fp: s.FalsePositives,
		fn: s.FalseNegatives,
		meta: Metadata{
			Creator:    s.Creator,
			Experiment: s.Experiment,
			Model:      s.Model,
			Notes:      s.Notes,
			Extra:      copyExtra(s.Extra),
		},
		createdAt: s.CreatedAt,
	}, nil
}

func validateCounts(tp, fp, fn int) error {
	for _, c := range []struct {
		name  string
		value int
	}{
		{"true_positives", tp},
		{"false_positives", fp},
		{"false_negatives", fn},
	} {
		if c.value < 0 {
			return fmt.Errorf("%s=%d: %w", c.name, c.value, ErrNegativeCount)
		}
	}
	return nil
}

func copyExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ID returns the report's identifier.
func (r *Report) ID() string { return r.id }

// TruePositives returns the stored TP count.
func (r *Report) TruePositives() int { return r.tp }

// FalsePositives returns the stored FP count.
func (r *Report) FalsePositives() int { return r.fp }

// FalseNegatives returns the stored FN count.
func (r *Report) FalseNegatives() int { return r.fn }

// CreatedAt returns the report's creation timestamp.
func (r *Report) CreatedAt() time.Time { return r.createdAt }

// Metadata returns a copy of the report's metadata.
func (r *Report) Metadata() Metadata {
	meta := r.meta
	meta.Extra = copyExtra(r.meta.Extra)
	return meta
}

// Snapshot exports the report's stored fields.
func (r *Report) Snapshot() Snapshot {
	return Snapshot{
		ID:             r.id,
		TruePositives:  r.tp,
		FalsePositives: r.fp,
		FalseNegatives: r.fn,
		Creator:        r.meta.Creator,
		Experiment:     r.meta.Experiment,
		Model:          r.meta.Model,
		Notes:          r.meta.Notes,
		Extra:          copyExtra(r.meta.Extra),
		CreatedAt:      r.createdAt,
	}
}

// Metrics computes precision, recall and F1 from the stored counts.
func (r *Report) Metrics() Metrics {
	var m Metrics
	if r.tp+r.fp > 0 {
		m.Precision = float64(r.tp) / float64(r.tp+r.fp)
	}
	if r.tp+r.fn > 0 {
		m.Recall = float64(r.tp) / float64(r.tp+r.fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// Summary renders a one-line human-readable view of counts and metrics.
func (r *Report) Summary() string {
	m := r.Metrics()
	return fmt.Sprintf("experiment=%q model=%q TP=%d FP=%d FN=%d precision=%.3f recall=%.3f f1=%.3f",
		r.meta.Experiment, r.meta.Model, r.tp, r.fp, r.fn, m.Precision, m.Recall, m.F1)
}

// reportDocument is the persisted JSON shape. Count fields are pointers so
// a load can distinguish a missing field from an explicit zero. The
// metrics block is written for human consumption only and ignored on load;
// the counts are authoritative.
type reportDocument struct {
	ID             string            `json:"id,omitempty"`
	TruePositives  *int              `json:"true_positives"`
	FalsePositives *int              `json:"false_positives"`
	FalseNegatives *int              `json:"false_negatives"`
	Creator        string            `json:"creator"`
	Experiment     string            `json:"experiment"`
	Model          string            `json:"model"`
	Notes          string            `json:"notes,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Metrics        *Metrics          `json:"metrics,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Report) MarshalJSON() ([]byte, error) {
	tp, fp, fn := r.tp, r.fp, r.fn
	metrics := r.Metrics()
	return json.Marshal(reportDocument{
		ID:             r.id,
		TruePositives:  &tp,
		FalsePositives: &fp,
		FalseNegatives: &fn,
		Creator:        r.meta.Creator,
		Experiment:     r.meta.Experiment,
		Model:          r.meta.Model,
		Notes:          r.meta.Notes,
		Extra:          r.meta.Extra,
		CreatedAt:      r.createdAt,
		Metrics:        &metrics,
	})
}

// UnmarshalJSON implements json.Unmarshaler, validating that all three
// counts are present and non-negative.
func (r *Report) UnmarshalJSON(data []byte) error {
	var doc reportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding report document: %w", err)
	}

	for _, c := range []struct {
		name  string
		value *int
	}{
		{"true_positives", doc.TruePositives},
		{"false_positives", doc.FalsePositives},
		{"false_negatives", doc.FalseNegatives},
	} {
		if c.value == nil {
			return fmt.Errorf("%s: %w", c.name, ErrMissingCount)
		}
	}

	rebuilt, err := FromSnapshot(Snapshot{
		ID:             doc.ID,
		TruePositives:  *doc.TruePositives,
		FalsePositives: *doc.FalsePositives,
		FalseNegatives: *doc.FalseNegatives,
		Creator:        doc.Creator,
		Experiment:     doc.Experiment,
		Model:          doc.Model,
		Notes:          doc.Notes,
		Extra:          doc.Extra,
		CreatedAt:      doc.CreatedAt,
	})
	if err != nil {
		return err
	}
	*r = *rebuilt
	return nil
}

// Save writes the report as indented JSON, overwriting any existing file
// at path. I/O failures are surfaced to the caller.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report to %s: %w", path, err)
	}
	return nil
}

// Load reads a report previously written by Save. The stored metrics block
// is discarded and recomputed from the counts.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("loading report %s: %w", path, err)
	}
	return &r, nil
}
