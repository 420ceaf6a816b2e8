package model

import (
	"fmt"
	"regexp"
	"strings"

	"story-processor/internal/domain/entity"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z]+`)

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return tokenPattern.FindAllString(lower, -1)
}

// vectorizer turns article text into a fixed-length numeric feature
// vector that a predictor can score.
type vectorizer interface {
	vectorize(text string) ([]float64, error)
	dim() int
}

// tfidfVectorizer produces a term-frequency vector scaled by each term's
// inverse document frequency, over a fixed vocabulary.
type tfidfVectorizer struct {
	vocab map[string]int
	idf   []float64
}

func newTFIDFVectorizer(artifact *tfidfArtifact) *tfidfVectorizer {
	return &tfidfVectorizer{vocab: artifact.Vocab, idf: artifact.IDF}
}

func (v *tfidfVectorizer) dim() int { return len(v.idf) }

func (v *tfidfVectorizer) vectorize(text string) ([]float64, error) {
	vec := make([]float64, len(v.idf))
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}
	for _, tok := range tokens {
		idx, ok := v.vocab[tok]
		if !ok || idx < 0 || idx >= len(vec) {
			continue
		}
		vec[idx]++
	}
	for i := range vec {
		if vec[i] == 0 {
			continue
		}
		tf := vec[i] / float64(len(tokens))
		vec[i] = tf * v.idf[i]
	}
	return vec, nil
}

// embeddingsVectorizer averages per-token word vectors into a single
// fixed-width document centroid (: "fixed-width embeddings
// centroid table").
type embeddingsVectorizer struct {
	dimension int
	vectors   map[string][]float64
}

func newEmbeddingsVectorizer(artifact *embeddingsArtifact) *embeddingsVectorizer {
	return &embeddingsVectorizer{dimension: artifact.Dim, vectors: artifact.Vectors}
}

func (v *embeddingsVectorizer) dim() int { return v.dimension }

func (v *embeddingsVectorizer) vectorize(text string) ([]float64, error) {
	centroid := make([]float64, v.dimension)
	tokens := tokenize(text)
	matched := 0
	for _, tok := range tokens {
		wv, ok := v.vectors[tok]
		if !ok || len(wv) != v.dimension {
			continue
		}
		for i, x := range wv {
			centroid[i] += x
		}
		matched++
	}
	if matched == 0 {
		return centroid, nil
	}
	for i := range centroid {
		centroid[i] /= float64(matched)
	}
	return centroid, nil
}

// loadVectorizer decodes a vectorizer artifact of the given type from
// raw bytes.
func loadVectorizer(vectorizerType entity.VectorizerType, data []byte) (vectorizer, error) {
	switch vectorizerType {
	case entity.VectorizerTFIDF:
		var artifact tfidfArtifact
		if err := decodeGob(data, &artifact); err != nil {
			return nil, err
		}
		if len(artifact.Vocab) == 0 || len(artifact.IDF) == 0 {
			return nil, fmt.Errorf("tfidf artifact: empty vocabulary")
		}
		return newTFIDFVectorizer(&artifact), nil
	case entity.VectorizerEmbeddings:
		var artifact embeddingsArtifact
		if err := decodeGob(data, &artifact); err != nil {
			return nil, err
		}
		if artifact.Dim <= 0 {
			return nil, fmt.Errorf("embeddings artifact: non-positive dimension %d", artifact.Dim)
		}
		return newEmbeddingsVectorizer(&artifact), nil
	default:
		return nil, fmt.Errorf("unsupported vectorizer type %q", vectorizerType)
	}
}
