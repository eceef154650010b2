package scoring

// Weights is a named weighting profile for the base score.
type Weights struct {
	Relevance         float64 `json:"relevance" yaml:"relevance"`
	Confidence        float64 `json:"confidence" yaml:"confidence"`
	Overall           float64 `json:"overall" yaml:"overall"`
	Recency           float64 `json:"recency" yaml:"recency"`
	Uniqueness        float64 `json:"uniqueness" yaml:"uniqueness"`
	SourceReliability float64 `json:"source_reliability" yaml:"source_reliability"`
	Engagement        float64 `json:"engagement" yaml:"engagement"`
}

// Preset names a weighting profile.
type Preset string

const (
	PresetAcademic  Preset = "academic"
	PresetGeneral   Preset = "general"
	PresetCommunity Preset = "community"
	PresetVideo     Preset = "video"
)

// PresetWeights returns the weights for a named preset. Weights sum to 1
// so that the base score stays in [0,1] before boosts.
func PresetWeights(p Preset) Weights {
	switch p {
	case PresetAcademic:
		return Weights{
			Relevance:         0.25,
			Confidence:        0.15,
			Overall:           0.10,
			Recency:           0.05,
			Uniqueness:        0.10,
			SourceReliability: 0.35,
			Engagement:        0.00,
		}
	case PresetCommunity:
		return Weights{
			Relevance:         0.25,
			Confidence:        0.15,
			Overall:           0.10,
			Recency:           0.10,
			Uniqueness:        0.10,
			SourceReliability: 0.10,
			Engagement:        0.20,
		}
	case PresetVideo:
		return Weights{
			Relevance:         0.30,
			Confidence:        0.15,
			Overall:           0.10,
			Recency:           0.15,
			Uniqueness:        0.10,
			SourceReliability: 0.10,
			Engagement:        0.10,
		}
	default: // PresetGeneral
		return Weights{
			Relevance:         0.30,
			Confidence:        0.20,
			Overall:           0.15,
			Recency:           0.10,
			Uniqueness:        0.10,
			SourceReliability: 0.15,
			Engagement:        0.00,
		}
	}
}
