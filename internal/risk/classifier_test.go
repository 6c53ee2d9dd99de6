package risk

import (
	"testing"
	"time"

	"github.com/onnwee/adoptfeed/internal/pet"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func listedDaysAgo(days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name      string
		candidate pet.Candidate
		want      pet.RiskClassification
	}{
		{
			name:      "listed thirty days ago",
			candidate: pet.Candidate{ID: "p1", ListedAt: listedDaysAgo(30)},
			want:      pet.RiskClassification{LongStay: true},
		},
		{
			name:      "exactly at threshold",
			candidate: pet.Candidate{ID: "p1", ListedAt: listedDaysAgo(21)},
			want:      pet.RiskClassification{LongStay: true},
		},
		{
			name:      "recently listed",
			candidate: pet.Candidate{ID: "p1", ListedAt: listedDaysAgo(20)},
			want:      pet.RiskClassification{},
		},
		{
			name:      "no listing date",
			candidate: pet.Candidate{ID: "p1"},
			want:      pet.RiskClassification{},
		},
		{
			name:      "senior",
			candidate: pet.Candidate{ID: "p1", AgeGroup: "senior", ListedAt: listedDaysAgo(1)},
			want:      pet.RiskClassification{Senior: true},
		},
		{
			name:      "medical keyword in raw description",
			candidate: pet.Candidate{ID: "p1", RawDescription: "Needs medication daily due to diabetes."},
			want:      pet.RiskClassification{Medical: true},
		},
		{
			name:      "medical keyword in ai description",
			candidate: pet.Candidate{ID: "p1", AIDescription: "Recovering from SURGERY, very sweet."},
			want:      pet.RiskClassification{Medical: true},
		},
		{
			name:      "keyword prefix",
			candidate: pet.Candidate{ID: "p1", RawDescription: "Front leg amputee"},
			want:      pet.RiskClassification{Medical: true},
		},
		{
			name:      "no keywords",
			candidate: pet.Candidate{ID: "p1", RawDescription: "Loves fetch and naps."},
			want:      pet.RiskClassification{},
		},
		{
			name: "curated flags carried over",
			candidate: pet.Candidate{
				ID:   "p1",
				Risk: &pet.RiskClassification{LongStay: true, OverlookedBreedGroup: true, RecentlyReturned: true},
			},
			want: pet.RiskClassification{OverlookedBreedGroup: true, RecentlyReturned: true},
		},
	}

	cl := NewClassifier(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cl.Classify(tt.candidate, now)
			if !SameFlags(got, tt.want) {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
			if !got.UpdatedAt.Equal(now) {
				t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
			}
		})
	}
}

func TestClassifier_CustomThreshold(t *testing.T) {
	cl := NewClassifier(7)
	got := cl.Classify(pet.Candidate{ID: "p1", ListedAt: listedDaysAgo(8)}, now)
	if !got.LongStay {
		t.Error("expected long stay with a 7 day threshold")
	}
}

func TestSameFlags(t *testing.T) {
	a := pet.RiskClassification{Senior: true, UpdatedAt: now}
	b := pet.RiskClassification{Senior: true, UpdatedAt: now.Add(time.Hour)}
	if !SameFlags(a, b) {
		t.Error("UpdatedAt should be ignored")
	}
	b.Medical = true
	if SameFlags(a, b) {
		t.Error("differing flags reported as equal")
	}
}
