package entity

// ModelType identifies which family of predictor a classifier stage uses.
type ModelType string

const (
	ModelNaiveBayes         ModelType = "naive-bayes"
	ModelLogisticRegression ModelType = "logistic-regression"
)

// VectorizerType identifies which text-to-vector transform a classifier
// stage uses.
type VectorizerType string

const (
	VectorizerTFIDF      VectorizerType = "tfidf"
	VectorizerEmbeddings VectorizerType = "embeddings"
)

// ModelStage describes one stage of a (possibly chained) classifier: the
// predictor type, the vectorizer type, and the artifact URLs needed to
// materialize both.
type ModelStage struct {
	ModelType      ModelType
	VectorizerType VectorizerType
	ModelURLs      []string
	VectorizerURLs []string
}

// ModelSpec is one entry of the model catalog fetched from the central
// server. ChainedModels selects between a single-stage and a two-stage
// (product-combined) classifier; see DESIGN.md's Open Question resolution
// for why the chained variant is treated as canonical when both appear in
// the wild.
type ModelSpec struct {
	ID             int64
	FilenamePrefix string
	ChainedModels  bool
	Stage1         ModelStage
	Stage2         ModelStage
}

// Validate checks that a ModelSpec is internally consistent before it is
// handed to the Model Registry.
func (m *ModelSpec) Validate() error {
	if m.ID <= 0 {
		return &ValidationError{Field: "id", Message: "model id must be positive"}
	}
	if m.FilenamePrefix == "" {
		return &ValidationError{Field: "filename_prefix", Message: "filename_prefix is required"}
	}
	if err := m.Stage1.validate("stage1"); err != nil {
		return err
	}
	if m.ChainedModels {
		if err := m.Stage2.validate("stage2"); err != nil {
			return err
		}
	}
	return nil
}

func (s *ModelStage) validate(stage string) error {
	switch s.ModelType {
	case ModelNaiveBayes, ModelLogisticRegression:
	default:
		return &ValidationError{Field: stage + ".model_type", Message: "unknown model type " + string(s.ModelType)}
	}
	switch s.VectorizerType {
	case VectorizerTFIDF, VectorizerEmbeddings:
	default:
		return &ValidationError{Field: stage + ".vectorizer_type", Message: "unknown vectorizer type " + string(s.VectorizerType)}
	}
	return nil
}
