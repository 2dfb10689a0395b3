package negotiation

import (
	"reflect"
	"testing"

	"drm-shim/internal/model"
)

func TestGenerateCandidatesCount(t *testing.T) {
	tests := []struct {
		name      string
		templates []model.KeySystemConfiguration
		want      int
	}{
		{name: "empty uses default", templates: nil, want: 6},
		{name: "one template", templates: []model.KeySystemConfiguration{DefaultConfiguration()}, want: 6},
		{
			name: "three templates",
			templates: []model.KeySystemConfiguration{
				{Label: "a", VideoCapabilities: []model.MediaCapability{{ContentType: "video/webm"}}},
				{Label: "b"},
				{Label: "c", AudioCapabilities: []model.MediaCapability{{ContentType: "audio/webm"}}},
			},
			want: 18,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateCandidates(tt.templates)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			for i, c := range got {
				want := model.RobustnessLevels[i%len(model.RobustnessLevels)]
				if c.Robustness != want {
					t.Errorf("candidate %d robustness = %v, want %v", i, c.Robustness, want)
				}
				if len(c.Configuration.VideoCapabilities) == 0 {
					t.Errorf("candidate %d has no video capability", i)
				}
				for _, r := range c.Configuration.VideoRobustness() {
					if r != c.Robustness {
						t.Errorf("candidate %d video robustness = %v, want %v", i, r, c.Robustness)
					}
				}
			}
		})
	}
}

func TestGenerateCandidatesOrder(t *testing.T) {
	templates := []model.KeySystemConfiguration{{Label: "first"}, {Label: "second"}}
	got := GenerateCandidates(templates)

	for i, c := range got {
		wantLabel := "first"
		if i >= 6 {
			wantLabel = "second"
		}
		if c.Configuration.Label != wantLabel {
			t.Errorf("candidate %d label = %q, want %q", i, c.Configuration.Label, wantLabel)
		}
	}
	if !reflect.DeepEqual(got, GenerateCandidates(templates)) {
		t.Error("generation is not deterministic")
	}
}

func TestGenerateCandidatesDoesNotMutateInput(t *testing.T) {
	templates := []model.KeySystemConfiguration{{
		VideoCapabilities: []model.MediaCapability{
			{ContentType: "video/mp4", Robustness: model.RobustnessSWSecureCrypto},
			{ContentType: "video/webm"},
		},
		AudioCapabilities: []model.MediaCapability{{ContentType: "audio/mp4", Robustness: model.RobustnessSWSecureCrypto}},
	}}
	before := model.CloneConfigurations(templates)

	got := GenerateCandidates(templates)
	got[0].Configuration.VideoCapabilities[0].ContentType = "changed"

	if !reflect.DeepEqual(templates, before) {
		t.Errorf("input mutated: %+v", templates)
	}
	if got[1].Configuration.VideoCapabilities[0].ContentType != "video/mp4" {
		t.Error("candidates share capability slices")
	}
	// Audio robustness is left alone.
	for _, c := range got {
		if c.Configuration.AudioCapabilities[0].Robustness != model.RobustnessSWSecureCrypto {
			t.Errorf("audio robustness changed to %v", c.Configuration.AudioCapabilities[0].Robustness)
		}
	}
}

func TestGenerateCandidatesDefaultTemplate(t *testing.T) {
	got := GenerateCandidates(nil)
	last := got[len(got)-1]
	if last.Robustness != model.RobustnessUnset {
		t.Errorf("last robustness = %v, want unset", last.Robustness)
	}
	cfg := last.Configuration
	if !reflect.DeepEqual(cfg.InitDataTypes, []string{"cenc", "webm"}) {
		t.Errorf("InitDataTypes = %v", cfg.InitDataTypes)
	}
	if cfg.AudioCapabilities[0].ContentType != DefaultAudioContentType || cfg.VideoCapabilities[0].ContentType != DefaultVideoContentType {
		t.Errorf("capabilities = %+v / %+v", cfg.AudioCapabilities, cfg.VideoCapabilities)
	}
	if cfg.PersistentState != "optional" || cfg.DistinctiveIdentifier != "optional" {
		t.Errorf("persistentState = %q, distinctiveIdentifier = %q", cfg.PersistentState, cfg.DistinctiveIdentifier)
	}
}
