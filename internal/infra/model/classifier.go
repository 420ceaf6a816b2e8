package model

import (
	"fmt"
	"math"

	"story-processor/internal/domain/entity"
)

// stage pairs one vectorizer with one predictor, the unit of work for a
// single classifier stage.
type stage struct {
	vectorizer vectorizer
	predictor  predictor
}

func (s *stage) score(text string) (float64, error) {
	vec, err := s.vectorizer.vectorize(text)
	if err != nil {
		return 0, err
	}
	prob, err := s.predictor.predict(vec)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return 0, fmt.Errorf("model produced out-of-range score %v", prob)
	}
	return prob, nil
}

// Scores is the per-article output of Classifier.Score:
// model_1, model_2 (nil for non-chained specs), and combined.
type Scores struct {
	Model1   float64
	Model2   *float64
	Combined float64
}

// Classifier evaluates one project's (possibly chained) model against
// article text.
type Classifier struct {
	modelID       int64
	stage1        *stage
	stage2        *stage
	chainedModels bool
}

// Score evaluates a batch of texts, returning one Scores entry per text in
// the same order. Any single text's failure aborts the whole batch:
// NaN, out-of-range, or shape-mismatch is a ModelError.
func (c *Classifier) Score(texts []string) ([]Scores, error) {
	out := make([]Scores, len(texts))
	for i, text := range texts {
		model1, err := c.stage1.score(text)
		if err != nil {
			return nil, &entity.ModelError{ModelID: c.modelID, Reason: "stage1 scoring failed", Err: err}
		}

		combined := model1
		var model2Ptr *float64
		if c.chainedModels {
			model2, err := c.stage2.score(text)
			if err != nil {
				return nil, &entity.ModelError{ModelID: c.modelID, Reason: "stage2 scoring failed", Err: err}
			}
			model2Ptr = &model2
			combined = model1 * model2
		}

		out[i] = Scores{Model1: model1, Model2: model2Ptr, Combined: combined}
	}
	return out, nil
}
