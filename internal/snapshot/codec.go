package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"studio/internal/domain"
	"studio/internal/studio"
)

// SchemaVersion guards snapshot payloads against incompatible readers.
const SchemaVersion = 1

// ErrSchemaMismatch reports a snapshot written by an incompatible schema.
var ErrSchemaMismatch = errors.New("snapshot: schema mismatch")

// envelope is the wire form of one persisted session. SavedAt mirrors the
// state's UpdatedAt so encoding the same state twice yields identical bytes.
type envelope struct {
	Schema  int          `json:"schema"`
	SavedAt string       `json:"saved_at"`
	State   domain.State `json:"state"`
}

// Capture serializes a session for persistence. In-flight work does not
// survive a snapshot: processing versions degrade to error versions,
// generating variations degrade to the error state, and unfinished resizes
// degrade to errored slots. Transient comparison state is dropped. The result
// is stable for an unchanged session.
func Capture(s *studio.Session) ([]byte, error) {
	var state domain.State
	s.View(func(st *domain.State) {
		state = cloneState(st)
	})
	degrade(&state)

	data, err := json.Marshal(envelope{
		Schema:  SchemaVersion,
		SavedAt: state.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		State:   state,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// Restore rehydrates a session from snapshot bytes. Malformed payloads and
// schema mismatches are reported as ErrRestoreFailed so the API layer can
// offer a clean new session instead of a half-restored one.
func Restore(data []byte) (*studio.Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRestoreFailed, err)
	}
	if env.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: %v", domain.ErrRestoreFailed, ErrSchemaMismatch)
	}
	if env.State.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", domain.ErrRestoreFailed)
	}
	degrade(&env.State)
	return studio.NewSessionFromState(env.State), nil
}

// degrade settles everything a snapshot cannot carry across a restart.
func degrade(st *domain.State) {
	st.Comparison = domain.Comparison{}
	for b := range st.Bases {
		chain := &st.Bases[b].Chain
		for i := range chain.Versions {
			if chain.Versions[i].Status == domain.VersionProcessing {
				chain.Versions[i].Status = domain.VersionError
				chain.Versions[i].ImageURL = ""
			}
		}
		chain.Navigate(chain.Current)
		degradeResizes(st.Bases[b].ResizedVersions)
	}
	for i := range st.Variations {
		v := &st.Variations[i]
		if v.Status == domain.VariationGenerating {
			v.Status = domain.VariationError
		}
		v.IsRegenerating = false
		if v.Chain.Len() > 0 {
			v.Chain.Navigate(v.Chain.Current)
		}
		degradeResizes(v.ResizedVersions)
	}
}

func degradeResizes(list []domain.ResizedVersion) {
	for i := range list {
		if list[i].Status == domain.ResizeResizing {
			list[i].Status = domain.ResizeError
			list[i].ImageURL = ""
		}
	}
}

func cloneState(st *domain.State) domain.State {
	out := *st
	out.Bases = make([]domain.BaseVersion, len(st.Bases))
	for i := range st.Bases {
		out.Bases[i] = st.Bases[i]
		out.Bases[i].Chain = st.Bases[i].Chain.Clone()
		out.Bases[i].ResizedVersions = append([]domain.ResizedVersion(nil), st.Bases[i].ResizedVersions...)
	}
	out.Variations = make([]domain.Variation, len(st.Variations))
	for i := range st.Variations {
		out.Variations[i] = st.Variations[i]
		out.Variations[i].Chain = st.Variations[i].Chain.Clone()
		out.Variations[i].ResizedVersions = append([]domain.ResizedVersion(nil), st.Variations[i].ResizedVersions...)
	}
	out.ReferenceImages = append([]domain.ReferenceImage(nil), st.ReferenceImages...)
	out.Tool.SelectedPresets = append([]string(nil), st.Tool.SelectedPresets...)
	if st.Tool.SelectedReferences != nil {
		out.Tool.SelectedReferences = make(map[string]string, len(st.Tool.SelectedReferences))
		for k, v := range st.Tool.SelectedReferences {
			out.Tool.SelectedReferences[k] = v
		}
	}
	out.Models.Models = append([]string(nil), st.Models.Models...)
	return out
}
