// Package dataset pairs predicted phenopacket documents with their
// ground-truth counterparts for batch evaluation. Pairing is by identical
// base filename across the two directories; how the files got their names
// (and onto disk) is the business of the upstream download and conversion
// tooling, not this package.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Pair joins one predicted document with its ground-truth document. ID is
// the shared base filename without the .json extension.
type Pair struct {
	ID              string
	PredictedPath   string
	GroundTruthPath string
}

// BuildIndex scans two directories of .json documents and returns the
// pairs that exist on both sides, sorted by ID. Files present on only one
// side are logged and skipped; an empty result is not an error.
func BuildIndex(predictedDir, groundTruthDir string) ([]Pair, error) {
	predicted, err := listJSONFiles(predictedDir)
	if err != nil {
		return nil, fmt.Errorf("scanning predicted directory: %w", err)
	}
	truth, err := listJSONFiles(groundTruthDir)
	if err != nil {
		return nil, fmt.Errorf("scanning ground-truth directory: %w", err)
	}

	var pairs []Pair
	for name, truthPath := range truth {
		predictedPath, ok := predicted[name]
		if !ok {
			logrus.WithField("sample", name).Warn("ground-truth document has no prediction")
			continue
		}
		pairs = append(pairs, Pair{
			ID:              strings.TrimSuffix(name, ".json"),
			PredictedPath:   predictedPath,
			GroundTruthPath: truthPath,
		})
	}

	for name := range predicted {
		if _, ok := truth[name]; !ok {
			logrus.WithField("sample", name).Warn("predicted document has no ground truth")
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ID < pairs[j].ID })
	return pairs, nil
}

// listJSONFiles maps base filename to full path for every .json file
// directly under dir.
func listJSONFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files[entry.Name()] = filepath.Join(dir, entry.Name())
	}
	return files, nil
}
