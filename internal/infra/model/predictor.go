package model

import (
	"fmt"
	"math"

	"story-processor/internal/domain/entity"
)

// predictor scores a fixed-length feature vector, returning the
// probability of the positive ("feminicide-relevant") class.
type predictor interface {
	predict(vec []float64) (float64, error)
}

// naiveBayesPredictor scores via per-class log priors plus per-feature
// log likelihoods, converted to a probability with a two-class softmax.
type naiveBayesPredictor struct {
	logPriors      [2]float64
	logLikelihoods [2][]float64
}

func newNaiveBayesPredictor(artifact *naiveBayesArtifact) *naiveBayesPredictor {
	return &naiveBayesPredictor{logPriors: artifact.LogPriors, logLikelihoods: artifact.LogLikelihoods}
}

func (p *naiveBayesPredictor) predict(vec []float64) (float64, error) {
	if len(p.logLikelihoods[0]) != len(vec) || len(p.logLikelihoods[1]) != len(vec) {
		return 0, fmt.Errorf("naive-bayes: feature vector length %d does not match model shape %d",
			len(vec), len(p.logLikelihoods[0]))
	}

	scores := [2]float64{p.logPriors[0], p.logPriors[1]}
	for c := 0; c < 2; c++ {
		for i, x := range vec {
			scores[c] += x * p.logLikelihoods[c][i]
		}
	}

	// Two-class softmax, numerically stabilized.
	maxScore := math.Max(scores[0], scores[1])
	exp0 := math.Exp(scores[0] - maxScore)
	exp1 := math.Exp(scores[1] - maxScore)
	prob := exp1 / (exp0 + exp1)
	return prob, nil
}

// logisticRegressionPredictor scores via a dot-product weight vector
// plus intercept, passed through a sigmoid.
type logisticRegressionPredictor struct {
	weights   []float64
	intercept float64
}

func newLogisticRegressionPredictor(artifact *logisticRegressionArtifact) *logisticRegressionPredictor {
	return &logisticRegressionPredictor{weights: artifact.Weights, intercept: artifact.Intercept}
}

func (p *logisticRegressionPredictor) predict(vec []float64) (float64, error) {
	if len(p.weights) != len(vec) {
		return 0, fmt.Errorf("logistic-regression: feature vector length %d does not match weight vector length %d",
			len(vec), len(p.weights))
	}

	z := p.intercept
	for i, x := range vec {
		z += x * p.weights[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// loadPredictor decodes a predictor artifact of the given type from raw
// bytes.
func loadPredictor(modelType entity.ModelType, data []byte) (predictor, error) {
	switch modelType {
	case entity.ModelNaiveBayes:
		var artifact naiveBayesArtifact
		if err := decodeGob(data, &artifact); err != nil {
			return nil, err
		}
		if len(artifact.LogLikelihoods[0]) == 0 || len(artifact.LogLikelihoods[1]) == 0 {
			return nil, fmt.Errorf("naive-bayes artifact: empty log-likelihood table")
		}
		return newNaiveBayesPredictor(&artifact), nil
	case entity.ModelLogisticRegression:
		var artifact logisticRegressionArtifact
		if err := decodeGob(data, &artifact); err != nil {
			return nil, err
		}
		if len(artifact.Weights) == 0 {
			return nil, fmt.Errorf("logistic-regression artifact: empty weight vector")
		}
		return newLogisticRegressionPredictor(&artifact), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
