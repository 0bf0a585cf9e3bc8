package indicator

import (
	"testing"

	"ppg-service/internal/models"
)

func TestStatus_SetColor(t *testing.T) {
	s := New()
	if s.Color() != (models.Color{}) {
		t.Errorf("New indicator should be off, got %s", s.Color())
	}

	s.SetColor(Waiting)
	s.SetColor(Ready)

	if s.Color() != Ready {
		t.Errorf("Expected %s, got %s", Ready, s.Color())
	}
	if s.Changes() != 2 {
		t.Errorf("Expected 2 changes, got %d", s.Changes())
	}
	if Ready.String() != "rgb(0,10,0)" || Waiting.String() != "rgb(10,0,0)" {
		t.Errorf("Unexpected palette %s / %s", Ready, Waiting)
	}
}
