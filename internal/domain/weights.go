package domain

// Weights are the multipliers applied to each breakdown component.
// The service owns them and ships them with every response.
type Weights struct {
	Version     string  `json:"version"`
	Copurchase  float64 `json:"copurchase"`
	LabelArtist float64 `json:"label_artist"`
	Tags        float64 `json:"tags"`
}

var DefaultWeights = Weights{
	Version:     "v1",
	Copurchase:  0.6,
	LabelArtist: 0.3,
	Tags:        0.1,
}

// Contributions scales each component by its weight.
func (w Weights) Contributions(b Breakdown) Breakdown {
	return Breakdown{
		Copurchase:  w.Copurchase * b.Copurchase,
		LabelArtist: w.LabelArtist * b.LabelArtist,
		Tags:        w.Tags * b.Tags,
	}
}

func (w Weights) Total(b Breakdown) float64 {
	c := w.Contributions(b)
	return c.Copurchase + c.LabelArtist + c.Tags
}

// IsZero reports whether no weights were delivered.
func (w Weights) IsZero() bool {
	return w.Copurchase == 0 && w.LabelArtist == 0 && w.Tags == 0
}
