package studio

import (
	"sync"
	"time"

	"studio/internal/domain"

	"github.com/google/uuid"
)

// Session wraps one editing session's state behind a single mutex. Every
// mutation goes through Apply so the state is never observed half-updated;
// snapshot capture reads through View and sees a consistent tree.
type Session struct {
	mu    sync.Mutex
	state domain.State
	dirty func()
}

// NewSession creates an empty session. The workspace stays blank until an
// image is uploaded.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{state: domain.State{
		SessionID: id,
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// NewSessionFromState rehydrates a session from restored state.
func NewSessionFromState(state domain.State) *Session {
	return &Session{state: state}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SessionID
}

// SetDirtyHook registers a callback invoked after every successful mutation.
// The snapshot saver uses it to schedule debounced persistence.
func (s *Session) SetDirtyHook(fn func()) {
	s.mu.Lock()
	s.dirty = fn
	s.mu.Unlock()
}

// Apply runs fn under the session lock. When fn succeeds the state is
// timestamped and the dirty hook fires; when it fails the partial edits fn
// made are still visible (fn must mutate only after its guards pass).
func (s *Session) Apply(fn func(*domain.State) error) error {
	s.mu.Lock()
	err := fn(&s.state)
	var hook func()
	if err == nil {
		s.state.UpdatedAt = time.Now().UTC()
		hook = s.dirty
	}
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

// View runs fn with read access to the state under the lock. fn must not
// retain pointers into the state after it returns.
func (s *Session) View(fn func(*domain.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Initialize seeds the workspace from an uploaded image: the "original" base
// version with a single-entry chain rooted at the upload.
func (s *Session) Initialize(img domain.UploadedImage) error {
	return s.Apply(func(st *domain.State) error {
		st.Uploaded = &img
		st.Bases = []domain.BaseVersion{{
			ID:           domain.OriginalBaseID,
			Name:         "Original",
			BaseImageURL: img.URL,
			Chain:        domain.NewChain(img.URL),
		}}
		st.ActiveBaseID = domain.OriginalBaseID
		st.SelectedVariationID = ""
		st.Variations = nil
		st.Comparison = domain.Comparison{}
		return nil
	})
}

// SetAnalysis records the analysis collaborator's output as prompt context.
func (s *Session) SetAnalysis(a domain.ImageAnalysis) error {
	return s.Apply(func(st *domain.State) error {
		st.Analysis = &a
		return nil
	})
}

// Navigate moves the active base chain's cursor. A version switch is a
// context change, so comparison state is cleared.
func (s *Session) Navigate(index int) error {
	return s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		if base == nil {
			return domain.ErrNotFound
		}
		base.Chain.Navigate(index)
		st.Comparison = domain.Comparison{}
		return nil
	})
}

// DeleteVersion removes a version from the active base chain. Deleting any
// version invalidates comparison indices, so comparison is cleared.
func (s *Session) DeleteVersion(index int) error {
	return s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		if base == nil {
			return domain.ErrNotFound
		}
		if err := base.Chain.DeleteAt(index); err != nil {
			return err
		}
		st.Comparison = domain.Comparison{}
		return nil
	})
}

// SetActiveTool records the tool the user switched to. Tool switches exit
// comparison mode.
func (s *Session) SetActiveTool(tool string) error {
	return s.Apply(func(st *domain.State) error {
		st.Tool.ActiveTool = tool
		st.Comparison = domain.Comparison{}
		return nil
	})
}

// SetPresets replaces the selected preset IDs.
func (s *Session) SetPresets(presets []string) error {
	return s.Apply(func(st *domain.State) error {
		st.Tool.SelectedPresets = append([]string(nil), presets...)
		return nil
	})
}

// SetModelSettings replaces the model/quality/compare selections.
func (s *Session) SetModelSettings(m domain.ModelSettings) error {
	return s.Apply(func(st *domain.State) error {
		st.Models = m
		return nil
	})
}

// AddReferenceImage attaches a session-scoped reference image and returns
// its ID.
func (s *Session) AddReferenceImage(ref domain.ReferenceImage) (string, error) {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	err := s.Apply(func(st *domain.State) error {
		st.ReferenceImages = append(st.ReferenceImages, ref)
		return nil
	})
	return ref.ID, err
}

// RemoveReferenceImage detaches a reference image and drops any selection
// pointing at it.
func (s *Session) RemoveReferenceImage(id string) error {
	return s.Apply(func(st *domain.State) error {
		for i := range st.ReferenceImages {
			if st.ReferenceImages[i].ID == id {
				st.ReferenceImages = append(st.ReferenceImages[:i], st.ReferenceImages[i+1:]...)
				for tool, sel := range st.Tool.SelectedReferences {
					if sel == id {
						delete(st.Tool.SelectedReferences, tool)
					}
				}
				return nil
			}
		}
		return domain.ErrNotFound
	})
}

// SelectReference marks one reference image as selected for a tool. An empty
// id clears the selection; at most one reference is selected per tool.
func (s *Session) SelectReference(tool string, id string) error {
	return s.Apply(func(st *domain.State) error {
		if st.Tool.SelectedReferences == nil {
			st.Tool.SelectedReferences = map[string]string{}
		}
		if id == "" {
			delete(st.Tool.SelectedReferences, tool)
			return nil
		}
		for i := range st.ReferenceImages {
			if st.ReferenceImages[i].ID == id {
				st.Tool.SelectedReferences[tool] = id
				return nil
			}
		}
		return domain.ErrNotFound
	})
}
