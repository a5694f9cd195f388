package phase

import "testing"

func TestSpecHasBehavior(t *testing.T) {
	s := Spec{Behaviors: map[Behavior]struct{}{Accumulate: {}}}

	if !s.HasBehavior(Accumulate) {
		t.Errorf("expected HasBehavior(Accumulate) to be true")
	}
	if s.HasBehavior(Stage) {
		t.Errorf("expected HasBehavior(Stage) to be false")
	}
}

func TestSpecIsConverging(t *testing.T) {
	tests := []struct {
		name     string
		converge int
		want     bool
	}{
		{"zero", 0, false},
		{"one", 1, false},
		{"three", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Spec{Converge: tt.converge}
			if got := s.IsConverging(); got != tt.want {
				t.Errorf("IsConverging() = %v, want %v", got, tt.want)
			}
		})
	}
}
