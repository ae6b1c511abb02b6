package studio

import (
	"errors"
	"testing"

	"studio/internal/domain"
)

func newUploadedSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("sess-1")
	err := s.Initialize(domain.UploadedImage{
		URL:      "https://cdn.example.com/upload.png",
		MimeType: "image/png",
		Name:     "upload.png",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return s
}

func appendCompleted(t *testing.T, s *Session, prompt string, parent int, url string) int {
	t.Helper()
	var idx int
	err := s.Apply(func(st *domain.State) error {
		base := st.ActiveBase()
		i, id, err := base.Chain.Append(prompt, "model-x", parent)
		if err != nil {
			return err
		}
		idx = i
		return base.Chain.Resolve(id, url)
	})
	if err != nil {
		t.Fatalf("append completed: %v", err)
	}
	return idx
}

func TestInitializeSeedsOriginal(t *testing.T) {
	s := newUploadedSession(t)
	s.View(func(st *domain.State) {
		if st.ActiveBaseID != domain.OriginalBaseID {
			t.Fatalf("active base = %q, want original", st.ActiveBaseID)
		}
		base := st.ActiveBase()
		if base.Chain.Len() != 1 {
			t.Fatalf("chain len = %d, want 1", base.Chain.Len())
		}
		root := base.Chain.Versions[0]
		if root.Status != domain.VersionCompleted || root.ParentIndex != -1 {
			t.Fatalf("root = %+v, want completed with parent -1", root)
		}
	})
}

func TestCreateBaseSwitchesSelection(t *testing.T) {
	s := newUploadedSession(t)
	appendCompleted(t, s, "brighten", 0, "v1.png")
	appendCompleted(t, s, "warm preset", 1, "v2.png")

	id, err := s.CreateBase("v2.png", "From: preset Warm")
	if err != nil {
		t.Fatalf("create base: %v", err)
	}
	s.View(func(st *domain.State) {
		if len(st.Bases) != 2 {
			t.Fatalf("bases = %d, want 2", len(st.Bases))
		}
		if st.ActiveBaseID != id {
			t.Fatalf("active = %q, want %q", st.ActiveBaseID, id)
		}
		base := st.ActiveBase()
		if base.Chain.Len() != 1 {
			t.Fatalf("new chain len = %d, want 1", base.Chain.Len())
		}
		if base.Chain.Versions[0].ImageURL != "v2.png" {
			t.Fatalf("root url = %q, want v2.png", base.Chain.Versions[0].ImageURL)
		}
		if base.SourceLabel != "From: preset Warm" {
			t.Fatalf("source label = %q", base.SourceLabel)
		}
	})
}

func TestBaseAndVariationNeverBothCurrent(t *testing.T) {
	s := newUploadedSession(t)
	vid, err := s.CreateVariation("Moody", "darker take")
	if err != nil {
		t.Fatalf("create variation: %v", err)
	}
	if err := s.SelectVariation(vid); err != nil {
		t.Fatalf("select variation: %v", err)
	}
	id, err := s.CreateBase("snap.png", "From: variation Moody")
	if err != nil {
		t.Fatalf("create base: %v", err)
	}
	s.View(func(st *domain.State) {
		if st.SelectedVariationID != "" {
			t.Fatalf("variation still selected after base creation")
		}
		if st.ActiveBaseID != id {
			t.Fatalf("active base = %q, want %q", st.ActiveBaseID, id)
		}
	})
}

func TestDeleteBaseGuards(t *testing.T) {
	s := newUploadedSession(t)
	appendCompleted(t, s, "edit", 0, "v1.png")

	// Original with edits is protected.
	if s.CanDeleteBase(domain.OriginalBaseID) {
		t.Fatalf("original with edits must not be deletable")
	}
	if err := s.DeleteBase(domain.OriginalBaseID); !errors.Is(err, domain.ErrBaseProtected) {
		t.Fatalf("err = %v, want ErrBaseProtected", err)
	}

	id, _ := s.CreateBase("v1.png", "snap")
	if !s.CanDeleteBase(id) {
		t.Fatalf("non-original base must be deletable")
	}
	if err := s.DeleteBase(id); err != nil {
		t.Fatalf("delete base: %v", err)
	}
	s.View(func(st *domain.State) {
		if st.ActiveBaseID != domain.OriginalBaseID {
			t.Fatalf("active = %q, want fallback to original", st.ActiveBaseID)
		}
	})
}

func TestDeleteOriginalResetsWorkspace(t *testing.T) {
	s := newUploadedSession(t)
	if !s.CanDeleteBase(domain.OriginalBaseID) {
		t.Fatalf("pristine original must be deletable (workspace reset)")
	}
	if err := s.DeleteBase(domain.OriginalBaseID); err != nil {
		t.Fatalf("delete original: %v", err)
	}
	s.View(func(st *domain.State) {
		if st.Uploaded != nil || len(st.Bases) != 0 || st.ActiveBaseID != "" {
			t.Fatalf("workspace not reset: %+v", st)
		}
	})
}

func TestOriginalProtectedWhileVariationsExist(t *testing.T) {
	s := newUploadedSession(t)
	vid, _ := s.CreateVariation("Moody", "")
	if s.CanDeleteBase(domain.OriginalBaseID) {
		t.Fatalf("original must be protected while a variation exists")
	}
	// Archived variations still count.
	if err := s.SetVariationArchived(vid, true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if s.CanDeleteBase(domain.OriginalBaseID) {
		t.Fatalf("archived variation must still protect the original")
	}
}

func TestNavigateClearsComparison(t *testing.T) {
	s := newUploadedSession(t)
	appendCompleted(t, s, "a", 0, "a.png")
	appendCompleted(t, s, "b", 1, "b.png")
	if err := s.EnterComparison(); err != nil {
		t.Fatalf("enter comparison: %v", err)
	}
	if err := s.Navigate(1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	s.View(func(st *domain.State) {
		if st.Comparison.Active {
			t.Fatalf("comparison must not survive a version switch")
		}
	})
}

func TestDeleteVersionClearsComparison(t *testing.T) {
	s := newUploadedSession(t)
	appendCompleted(t, s, "a", 0, "a.png")
	appendCompleted(t, s, "b", 0, "b.png")
	if err := s.EnterComparison(); err != nil {
		t.Fatalf("enter comparison: %v", err)
	}
	if err := s.DeleteVersion(2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	s.View(func(st *domain.State) {
		if st.Comparison.Active {
			t.Fatalf("comparison must not survive a deletion")
		}
	})
}

func TestReferenceImageSelection(t *testing.T) {
	s := newUploadedSession(t)
	id, err := s.AddReferenceImage(domain.ReferenceImage{
		URL:      "blob:ref",
		Base64:   "aGVsbG8=",
		MimeType: "image/png",
		Type:     domain.ReferenceBackground,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SelectReference("background", id); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.SelectReference("background", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("select missing err = %v, want ErrNotFound", err)
	}
	if err := s.RemoveReferenceImage(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	s.View(func(st *domain.State) {
		if len(st.ReferenceImages) != 0 {
			t.Fatalf("reference images = %d, want 0", len(st.ReferenceImages))
		}
		if _, ok := st.Tool.SelectedReferences["background"]; ok {
			t.Fatalf("selection must be dropped with the image")
		}
	})
}

func TestDirtyHookFiresOnMutation(t *testing.T) {
	s := newUploadedSession(t)
	calls := 0
	s.SetDirtyHook(func() { calls++ })
	if err := s.SetPresets([]string{"warm", "studio"}); err != nil {
		t.Fatalf("set presets: %v", err)
	}
	if err := s.SelectVariation("missing"); err == nil {
		t.Fatalf("expected error for unknown variation")
	}
	if calls != 1 {
		t.Fatalf("dirty hook calls = %d, want 1 (failed mutations must not notify)", calls)
	}
}
