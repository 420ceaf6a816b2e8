package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// artifactVersion is bumped whenever the encoded shape below changes in a
// way older readers can't tolerate.
const artifactVersion = 1

// naiveBayesArtifact is a gob-encoded bundle of per-class log priors and
// per-feature log likelihoods. Index 0 is the negative class, index 1 is
// the positive ("feminicide-relevant") class.
type naiveBayesArtifact struct {
	Version        int
	LogPriors      [2]float64
	LogLikelihoods [2][]float64
}

// logisticRegressionArtifact is a gob-encoded weight vector plus
// intercept for a binary logistic classifier.
type logisticRegressionArtifact struct {
	Version   int
	Weights   []float64
	Intercept float64
}

// tfidfArtifact is a gob-encoded vocabulary and per-term IDF table.
type tfidfArtifact struct {
	Version   int
	Vocab     map[string]int
	IDF       []float64
	VocabSize int
}

// embeddingsArtifact is a gob-encoded fixed-width word-vector lookup
// table used to build a document centroid vector.
type embeddingsArtifact struct {
	Version int
	Dim     int
	Vectors map[string][]float64
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}
