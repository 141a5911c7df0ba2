package domain

// Breakdown holds the unweighted factor values behind a total score.
// Absent components decode as 0.
type Breakdown struct {
	Copurchase  float64 `json:"copurchase"`
	LabelArtist float64 `json:"label_artist"`
	Tags        float64 `json:"tags"`
}

type RawEvidence struct {
	CopurchaseCount int      `json:"copurchase_count"`
	Fans            []string `json:"fans,omitempty"`
}

type Recommendation struct {
	Title      string       `json:"title"`
	Artist     string       `json:"artist"`
	Label      string       `json:"label,omitempty"`
	URL        string       `json:"url"`
	Tags       []string     `json:"tags,omitempty"`
	Breakdown  *Breakdown   `json:"breakdown,omitempty"`
	TotalScore *float64     `json:"total_score,omitempty"`
	Raw        *RawEvidence `json:"raw,omitempty"`
}

// Components returns the breakdown, or a zero breakdown when the payload had none.
func (r Recommendation) Components() Breakdown {
	if r.Breakdown == nil {
		return Breakdown{}
	}
	return *r.Breakdown
}

// Score returns the stated total and whether it was present.
func (r Recommendation) Score() (float64, bool) {
	if r.TotalScore == nil {
		return 0, false
	}
	return *r.TotalScore, true
}

type RecommendRequest struct {
	Input string `json:"input" validate:"required"`
}

type RecommendationMeta struct {
	Subject     string `json:"subject"`
	CacheHit    bool   `json:"cache_hit"`
	GeneratedAt string `json:"generated_at"`
	TotalCount  int    `json:"total_count"`
}

type RecommendationResponse struct {
	Recommendations []Recommendation    `json:"recommendations"`
	Weights         *Weights            `json:"weights,omitempty"`
	Metadata        *RecommendationMeta `json:"metadata,omitempty"`
}

type WeightsResponse struct {
	Weights Weights `json:"weights"`
}

type RecommendationResult struct {
	Subject         string
	Recommendations []Recommendation
	CacheHit        bool
}
