package studio

import "studio/internal/domain"

// EnterComparison pins the currently viewed version of the active base chain
// as the left (stable) side and picks its neighbor as the movable right side,
// preferring the next version over the previous one. Variations are not
// comparable.
func (s *Session) EnterComparison() error {
	return s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		if base == nil {
			return domain.ErrNotFound
		}
		if base.Chain.Len() < 2 {
			return domain.ErrComparisonBounds
		}
		left := base.Chain.Current
		right := left + 1
		if right >= base.Chain.Len() {
			right = left - 1
		}
		st.Comparison = domain.Comparison{Active: true, LeftIndex: left, RightIndex: right}
		return nil
	})
}

// SelectComparisonRight points the movable side at a specific version. The
// locked left index is rejected; both sides must always differ.
func (s *Session) SelectComparisonRight(index int) error {
	return s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		if base == nil || !st.Comparison.Active {
			return domain.ErrNotFound
		}
		if index < 0 || index >= base.Chain.Len() {
			return domain.ErrInvalidIndex
		}
		if index == st.Comparison.LeftIndex {
			return domain.ErrComparisonSame
		}
		st.Comparison.RightIndex = index
		return nil
	})
}

// MoveComparisonRight shifts the movable side by delta (arrow keys send -1 or
// +1), skipping over the locked left index and stopping at chain bounds. A
// move that cannot land anywhere is a no-op.
func (s *Session) MoveComparisonRight(delta int) error {
	return s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		if base == nil || !st.Comparison.Active {
			return domain.ErrNotFound
		}
		if delta == 0 {
			return nil
		}
		step := 1
		if delta < 0 {
			step = -1
		}
		next := st.Comparison.RightIndex + step
		if next == st.Comparison.LeftIndex {
			next += step
		}
		if next < 0 || next >= base.Chain.Len() {
			return nil
		}
		st.Comparison.RightIndex = next
		return nil
	})
}

// ExitComparison clears both indices entirely.
func (s *Session) ExitComparison() error {
	return s.Apply(func(st *domain.State) error {
		st.Comparison = domain.Comparison{}
		return nil
	})
}
