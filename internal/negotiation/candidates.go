package negotiation

import (
	"drm-shim/internal/model"
)

// Default capability content types, used when the application supplies no
// configuration or a configuration without video.
const (
	DefaultAudioContentType = `audio/mp4; codecs="mp4a.40.2"`
	DefaultVideoContentType = `video/mp4; codecs="avc1.42E01E"`
)

// DefaultConfiguration is the template used when the application passes no
// configurations.
func DefaultConfiguration() model.KeySystemConfiguration {
	return model.KeySystemConfiguration{
		InitDataTypes:         []string{"cenc", "webm"},
		AudioCapabilities:     []model.MediaCapability{{ContentType: DefaultAudioContentType}},
		VideoCapabilities:     []model.MediaCapability{{ContentType: DefaultVideoContentType}},
		DistinctiveIdentifier: "optional",
		PersistentState:       "optional",
	}
}

// GenerateCandidates expands templates into the fallback sequence: templates in
// order, and for each template one candidate per entry of
// model.RobustnessLevels. templates is never modified.
func GenerateCandidates(templates []model.KeySystemConfiguration) []Candidate {
	if len(templates) == 0 {
		templates = []model.KeySystemConfiguration{DefaultConfiguration()}
	}

	out := make([]Candidate, 0, len(templates)*len(model.RobustnessLevels))
	for _, tmpl := range templates {
		base := tmpl.Clone()
		if len(base.VideoCapabilities) == 0 {
			base.VideoCapabilities = []model.MediaCapability{{ContentType: DefaultVideoContentType}}
		}
		for _, level := range model.RobustnessLevels {
			cfg := base.Clone()
			for i := range cfg.VideoCapabilities {
				cfg.VideoCapabilities[i].Robustness = level
			}
			out = append(out, Candidate{Robustness: level, Configuration: cfg})
		}
	}
	return out
}
