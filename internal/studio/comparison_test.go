package studio

import (
	"errors"
	"testing"

	"studio/internal/domain"
)

func chainOfThree(t *testing.T) *Session {
	t.Helper()
	s := newUploadedSession(t)
	appendCompleted(t, s, "a", 0, "a.png") // index 1
	appendCompleted(t, s, "b", 1, "b.png") // index 2
	return s
}

func comparison(s *Session) domain.Comparison {
	var c domain.Comparison
	s.View(func(st *domain.State) { c = st.Comparison })
	return c
}

func TestEnterComparisonPrefersNextNeighbor(t *testing.T) {
	s := chainOfThree(t)
	if err := s.Navigate(1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := s.EnterComparison(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	c := comparison(s)
	if c.LeftIndex != 1 || c.RightIndex != 2 {
		t.Fatalf("comparison = %+v, want left 1 right 2", c)
	}
}

func TestEnterComparisonFallsBackToPrevious(t *testing.T) {
	s := chainOfThree(t)
	_ = s.Navigate(2)
	if err := s.EnterComparison(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	c := comparison(s)
	if c.LeftIndex != 2 || c.RightIndex != 1 {
		t.Fatalf("comparison = %+v, want left 2 right 1", c)
	}
}

func TestEnterComparisonNeedsTwoVersions(t *testing.T) {
	s := newUploadedSession(t)
	if err := s.EnterComparison(); !errors.Is(err, domain.ErrComparisonBounds) {
		t.Fatalf("err = %v, want ErrComparisonBounds", err)
	}
}

func TestSelectRightRejectsLeft(t *testing.T) {
	s := chainOfThree(t)
	_ = s.Navigate(1)
	_ = s.EnterComparison()
	if err := s.SelectComparisonRight(1); !errors.Is(err, domain.ErrComparisonSame) {
		t.Fatalf("err = %v, want ErrComparisonSame", err)
	}
	if err := s.SelectComparisonRight(0); err != nil {
		t.Fatalf("select 0: %v", err)
	}
	if c := comparison(s); c.RightIndex != 0 {
		t.Fatalf("right = %d, want 0", c.RightIndex)
	}
}

func TestArrowNavigationSkipsLeftAndClampsBounds(t *testing.T) {
	s := chainOfThree(t)
	_ = s.Navigate(1)
	_ = s.EnterComparison() // left 1, right 2

	if err := s.MoveComparisonRight(-1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if c := comparison(s); c.RightIndex != 0 {
		t.Fatalf("right = %d, want 0 (skipped locked index 1)", c.RightIndex)
	}
	if err := s.MoveComparisonRight(-1); err != nil {
		t.Fatalf("move at bound: %v", err)
	}
	if c := comparison(s); c.RightIndex != 0 {
		t.Fatalf("right = %d, want 0 (no-op at bound)", c.RightIndex)
	}
	if err := s.MoveComparisonRight(1); err != nil {
		t.Fatalf("move: %v", err)
	}
	c := comparison(s)
	if c.RightIndex != 2 {
		t.Fatalf("right = %d, want 2 (skipped locked index 1)", c.RightIndex)
	}
	if c.RightIndex == c.LeftIndex {
		t.Fatalf("right must never equal left")
	}
}

func TestToolSwitchExitsComparison(t *testing.T) {
	s := chainOfThree(t)
	_ = s.EnterComparison()
	if err := s.SetActiveTool("background"); err != nil {
		t.Fatalf("set tool: %v", err)
	}
	if comparison(s).Active {
		t.Fatalf("comparison must not survive a tool switch")
	}
}

func TestExplicitExit(t *testing.T) {
	s := chainOfThree(t)
	_ = s.EnterComparison()
	if err := s.ExitComparison(); err != nil {
		t.Fatalf("exit: %v", err)
	}
	c := comparison(s)
	if c.Active || c.LeftIndex != 0 || c.RightIndex != 0 {
		t.Fatalf("comparison = %+v, want zero value", c)
	}
}
