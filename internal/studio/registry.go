package studio

import (
	"fmt"

	"studio/internal/domain"

	"github.com/google/uuid"
)

// CreateBase snapshots the given image into a new base version with a fresh
// chain rooted at it, makes it active, and switches the current selection
// away from any variation. A base and a variation are never simultaneously
// current.
func (s *Session) CreateBase(imageURL, sourceLabel string) (string, error) {
	id := uuid.NewString()
	err := s.Apply(func(st *domain.State) error {
		if st.Uploaded == nil {
			return domain.ErrNotFound
		}
		if imageURL == "" {
			return domain.ErrInvalidTarget
		}
		st.Bases = append(st.Bases, domain.BaseVersion{
			ID:           id,
			Name:         fmt.Sprintf("Version %d", len(st.Bases)+1),
			BaseImageURL: imageURL,
			SourceLabel:  sourceLabel,
			Chain:        domain.NewChain(imageURL),
		})
		st.ActiveBaseID = id
		st.SelectedVariationID = ""
		st.Comparison = domain.Comparison{}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetActiveBase switches which base version is current, clearing any
// variation selection and comparison state.
func (s *Session) SetActiveBase(id string) error {
	return s.Apply(func(st *domain.State) error {
		if st.Base(id) == nil {
			return domain.ErrNotFound
		}
		st.ActiveBaseID = id
		st.SelectedVariationID = ""
		st.Comparison = domain.Comparison{}
		return nil
	})
}

// SelectVariation makes a variation the current selection. The active base
// pointer is kept so deselecting falls back naturally, but exactly one of
// base or variation is "current" at any time.
func (s *Session) SelectVariation(id string) error {
	return s.Apply(func(st *domain.State) error {
		if id != "" && st.Variation(id) == nil {
			return domain.ErrNotFound
		}
		st.SelectedVariationID = id
		st.Comparison = domain.Comparison{}
		return nil
	})
}

// canDeleteBase reports whether a base may be removed. Any non-original base
// may go; the original only when it is the sole remaining content, in which
// case deletion means a full workspace reset.
func canDeleteBase(st *domain.State, id string) bool {
	base := st.Base(id)
	if base == nil {
		return false
	}
	if id != domain.OriginalBaseID {
		return true
	}
	return base.Chain.Len() <= 1 && len(st.Bases) == 1 && len(st.Variations) == 0
}

// CanDeleteBase exposes the deletion guard to the API layer.
func (s *Session) CanDeleteBase(id string) bool {
	var ok bool
	s.View(func(st *domain.State) { ok = canDeleteBase(st, id) })
	return ok
}

// DeleteBase removes a base version. Removing the original when it is the
// only content resets the whole workspace, uploaded image included; removing
// any other base falls the active pointer back to the original.
func (s *Session) DeleteBase(id string) error {
	return s.Apply(func(st *domain.State) error {
		if st.Base(id) == nil {
			return domain.ErrNotFound
		}
		if !canDeleteBase(st, id) {
			return domain.ErrBaseProtected
		}
		if id == domain.OriginalBaseID {
			resetWorkspace(st)
			return nil
		}
		for i := range st.Bases {
			if st.Bases[i].ID == id {
				st.Bases = append(st.Bases[:i], st.Bases[i+1:]...)
				break
			}
		}
		if st.ActiveBaseID == id {
			st.ActiveBaseID = domain.OriginalBaseID
		}
		st.Comparison = domain.Comparison{}
		return nil
	})
}

func resetWorkspace(st *domain.State) {
	st.Uploaded = nil
	st.Analysis = nil
	st.Bases = nil
	st.ActiveBaseID = ""
	st.Variations = nil
	st.SelectedVariationID = ""
	st.ReferenceImages = nil
	st.Tool = domain.ToolState{}
	st.Comparison = domain.Comparison{}
}
