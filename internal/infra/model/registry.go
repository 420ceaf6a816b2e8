package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"story-processor/internal/domain/entity"
	"story-processor/internal/observability/metrics"
)

// Registry loads classifier artifacts on demand from disk and caches the
// resulting Classifier per (model id, language bucket).
type Registry struct {
	cfg   Config
	specs map[int64]entity.ModelSpec

	mu    sync.RWMutex
	cache map[registryKey]*Classifier
}

type registryKey struct {
	modelID int64
	bucket  string
}

// NewRegistry builds a Registry over the given model catalog.
func NewRegistry(cfg Config, catalog []entity.ModelSpec) *Registry {
	specs := make(map[int64]entity.ModelSpec, len(catalog))
	for _, s := range catalog {
		specs[s.ID] = s
	}
	return &Registry{
		cfg:   cfg,
		specs: specs,
		cache: make(map[registryKey]*Classifier),
	}
}

// Classifier returns the cached Classifier for modelID, loading it from
// disk on first use for the given project language. Failures are
// surfaced as *entity.ModelError (non-retryable,).
func (r *Registry) Classifier(modelID int64, language string) (*Classifier, error) {
	bucket := LanguageBucket(language)
	key := registryKey{modelID: modelID, bucket: bucket}

	r.mu.RLock()
	if c, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cache[key]; ok {
		return c, nil
	}

	spec, ok := r.specs[modelID]
	if !ok {
		metrics.RecordModelLoadFailure(modelID, "unknown_model_id")
		return nil, &entity.ModelError{ModelID: modelID, Reason: "unknown model id in catalog"}
	}

	c, err := r.load(spec, bucket)
	if err != nil {
		metrics.RecordModelLoadFailure(modelID, "load_failed")
		return nil, err
	}
	r.cache[key] = c
	return c, nil
}

func (r *Registry) load(spec entity.ModelSpec, bucket string) (*Classifier, error) {
	stage1, err := r.loadStage(spec.ID, spec.FilenamePrefix, 1, spec.Stage1, bucket)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		modelID:       spec.ID,
		stage1:        stage1,
		chainedModels: spec.ChainedModels,
	}

	if spec.ChainedModels {
		stage2, err := r.loadStage(spec.ID, spec.FilenamePrefix, 2, spec.Stage2, bucket)
		if err != nil {
			return nil, err
		}
		c.stage2 = stage2
	}

	return c, nil
}

func (r *Registry) loadStage(modelID int64, prefix string, stageNum int, s entity.ModelStage, bucket string) (*stage, error) {
	modelPath := filepath.Join(r.cfg.ModelDir, fmt.Sprintf("%s_%d_model.bin", prefix, stageNum))
	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, &entity.ModelError{ModelID: modelID, Reason: "missing model artifact: " + modelPath, Err: err}
	}
	predictor, err := loadPredictor(s.ModelType, modelData)
	if err != nil {
		return nil, &entity.ModelError{ModelID: modelID, Reason: "corrupt model artifact: " + modelPath, Err: err}
	}

	var vectorizerPath string
	if s.VectorizerType == entity.VectorizerEmbeddings {
		vectorizerPath = filepath.Join(r.cfg.ModelDir, fmt.Sprintf("embeddings-%s", bucket), fmt.Sprintf("%s_%d_vectorizer.bin", prefix, stageNum))
	} else {
		vectorizerPath = filepath.Join(r.cfg.ModelDir, fmt.Sprintf("%s_%d_vectorizer.bin", prefix, stageNum))
	}
	vectorizerData, err := os.ReadFile(vectorizerPath)
	if err != nil {
		return nil, &entity.ModelError{ModelID: modelID, Reason: "missing vectorizer artifact: " + vectorizerPath, Err: err}
	}
	vec, err := loadVectorizer(s.VectorizerType, vectorizerData)
	if err != nil {
		return nil, &entity.ModelError{ModelID: modelID, Reason: "corrupt vectorizer artifact: " + vectorizerPath, Err: err}
	}

	return &stage{vectorizer: vec, predictor: predictor}, nil
}
