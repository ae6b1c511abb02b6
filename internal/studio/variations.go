package studio

import (
	"studio/internal/domain"

	"github.com/google/uuid"
)

// CreateVariation registers a named creative direction in the idle state
// with an empty chain. Its root version appears on first successful
// generation.
func (s *Session) CreateVariation(title, description string) (string, error) {
	id := uuid.NewString()
	err := s.Apply(func(st *domain.State) error {
		st.Variations = append(st.Variations, domain.Variation{
			ID:          id,
			Title:       title,
			Description: description,
			Status:      domain.VariationIdle,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// BeginVariationGeneration transitions idle (or errored, for a retry) into
// generating.
func (s *Session) BeginVariationGeneration(id string) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil {
			return domain.ErrNotFound
		}
		if v.Status == domain.VariationGenerating || v.IsRegenerating {
			return domain.ErrVariationBusy
		}
		if v.Status == domain.VariationCompleted {
			return domain.ErrVariationBusy
		}
		v.Status = domain.VariationGenerating
		return nil
	})
}

// CompleteVariationGeneration seeds the variation's root version from the
// generated image. The root is index 0, no prompt, parent -1, and trivially
// selected since nothing else exists to view.
func (s *Session) CompleteVariationGeneration(id, imageURL string) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil {
			return domain.ErrStaleTarget
		}
		if v.Status != domain.VariationGenerating {
			return domain.ErrStaleTarget
		}
		v.Chain = domain.NewChain(imageURL)
		v.Status = domain.VariationCompleted
		return nil
	})
}

// FailVariationGeneration records a failed first generation. No version is
// appended; the variation can be retried.
func (s *Session) FailVariationGeneration(id string) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil || v.Status != domain.VariationGenerating {
			return domain.ErrStaleTarget
		}
		v.Status = domain.VariationError
		return nil
	})
}

// BeginVariationEdit marks a completed variation as regenerating and returns
// the index the edit derives from (the currently viewed version, captured
// now so a later navigation cannot redirect the result).
func (s *Session) BeginVariationEdit(id string) (int, error) {
	parent := 0
	err := s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil {
			return domain.ErrNotFound
		}
		if v.Status != domain.VariationCompleted {
			return domain.ErrNotCompleted
		}
		if v.IsRegenerating {
			return domain.ErrVariationBusy
		}
		v.IsRegenerating = true
		parent = v.Chain.Current
		return nil
	})
	return parent, err
}

// CompleteVariationEdit appends the edit result as a completed version. The
// cursor does not move; HasNewVersion flags the UI to offer "view latest".
func (s *Session) CompleteVariationEdit(id, prompt, model, imageURL string, parentIndex int) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil || !v.IsRegenerating {
			return domain.ErrStaleTarget
		}
		_, vid, err := v.Chain.Append(prompt, model, parentIndex)
		if err != nil {
			v.IsRegenerating = false
			return err
		}
		if err := v.Chain.Resolve(vid, imageURL); err != nil {
			return err
		}
		v.IsRegenerating = false
		v.HasNewVersion = true
		return nil
	})
}

// FailVariationEdit discards a failed edit attempt. Nothing is appended and
// the displayed version is unchanged; variations favor a clean retry over a
// visible failure history.
func (s *Session) FailVariationEdit(id string) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil || !v.IsRegenerating {
			return domain.ErrStaleTarget
		}
		v.IsRegenerating = false
		return nil
	})
}

// NavigateVariation moves a variation's cursor, clamped to its chain.
func (s *Session) NavigateVariation(id string, index int) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil {
			return domain.ErrNotFound
		}
		v.Chain.Navigate(index)
		return nil
	})
}

// ViewLatestVariation jumps the cursor to the newest version and clears the
// new-version flag.
func (s *Session) ViewLatestVariation(id string) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil {
			return domain.ErrNotFound
		}
		if v.Chain.Len() == 0 {
			return domain.ErrNotCompleted
		}
		v.Chain.Navigate(v.Chain.Len() - 1)
		v.HasNewVersion = false
		return nil
	})
}

// SetVariationArchived flips the soft-delete flag. Archiving never stops an
// in-flight generation; the variation just leaves the active listing until
// restored.
func (s *Session) SetVariationArchived(id string, archived bool) error {
	return s.Apply(func(st *domain.State) error {
		v := st.Variation(id)
		if v == nil {
			return domain.ErrNotFound
		}
		v.IsArchived = archived
		return nil
	})
}

// DuplicateVariation creates a brand-new variation whose root is a copy of
// the source's currently viewed image. History is never copied.
func (s *Session) DuplicateVariation(id, title string) (string, error) {
	newID := uuid.NewString()
	err := s.Apply(func(st *domain.State) error {
		src := st.Variation(id)
		if src == nil {
			return domain.ErrNotFound
		}
		img := src.DisplayedImageURL()
		if img == "" {
			return domain.ErrNotCompleted
		}
		if title == "" {
			title = src.Title + " (copy)"
		}
		st.Variations = append(st.Variations, domain.Variation{
			ID:          newID,
			Title:       title,
			Description: src.Description,
			Status:      domain.VariationCompleted,
			Chain:       domain.NewChain(img),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// DeleteVariation removes a variation outright. A variation with a live
// generation keeps its reservation guard: it cannot be removed until the
// request settles.
func (s *Session) DeleteVariation(id string) error {
	return s.Apply(func(st *domain.State) error {
		for i := range st.Variations {
			if st.Variations[i].ID != id {
				continue
			}
			if st.Variations[i].Status == domain.VariationGenerating || st.Variations[i].IsRegenerating {
				return domain.ErrVariationBusy
			}
			st.Variations = append(st.Variations[:i], st.Variations[i+1:]...)
			if st.SelectedVariationID == id {
				st.SelectedVariationID = ""
			}
			return nil
		}
		return domain.ErrNotFound
	})
}
