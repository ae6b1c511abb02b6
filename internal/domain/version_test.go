package domain

import (
	"errors"
	"testing"
)

func TestNewChainSeedsCompletedRoot(t *testing.T) {
	c := NewChain("https://cdn.example.com/upload.png")
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	root := c.Versions[0]
	if root.ParentIndex != -1 {
		t.Fatalf("parent index = %d, want -1", root.ParentIndex)
	}
	if root.Status != VersionCompleted {
		t.Fatalf("status = %q, want %q", root.Status, VersionCompleted)
	}
	if root.ImageURL == "" {
		t.Fatalf("root image url must not be empty")
	}
	if root.Prompt != "" {
		t.Fatalf("root prompt = %q, want empty", root.Prompt)
	}
	if c.Current != 0 {
		t.Fatalf("cursor = %d, want 0", c.Current)
	}
}

func TestAppendReservesDistinctSlots(t *testing.T) {
	c := NewChain("base.png")
	idxA, idA, err := c.Append("brighten", "model-x", 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	idxB, idB, err := c.Append("brighten", "model-y", 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if idxA != 1 || idxB != 2 {
		t.Fatalf("indices = %d,%d, want 1,2", idxA, idxB)
	}
	if idA == idB {
		t.Fatalf("reservation ids must be distinct")
	}
	for _, idx := range []int{idxA, idxB} {
		v := c.Versions[idx]
		if v.Status != VersionProcessing {
			t.Fatalf("slot %d status = %q, want processing", idx, v.Status)
		}
		if v.ImageURL != "" {
			t.Fatalf("processing slot %d has image url", idx)
		}
		if v.ParentIndex != 0 {
			t.Fatalf("slot %d parent = %d, want 0", idx, v.ParentIndex)
		}
	}
}

func TestAppendRejectsOutOfRangeParent(t *testing.T) {
	c := NewChain("base.png")
	if _, _, err := c.Append("p", "m", 3); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("err = %v, want ErrInvalidIndex", err)
	}
	if _, _, err := c.Append("p", "m", -1); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("err = %v, want ErrInvalidIndex", err)
	}
}

func TestResolveOutOfOrderLandsOnReservedSlots(t *testing.T) {
	c := NewChain("base.png")
	_, idX, _ := c.Append("edit", "model-x", 0)
	_, idY, _ := c.Append("edit", "model-y", 0)

	// Later-started request resolves first.
	if err := c.Resolve(idY, "y.png"); err != nil {
		t.Fatalf("resolve y: %v", err)
	}
	if err := c.Resolve(idX, "x.png"); err != nil {
		t.Fatalf("resolve x: %v", err)
	}
	if got := c.Versions[1].ImageURL; got != "x.png" {
		t.Fatalf("slot 1 url = %q, want x.png", got)
	}
	if got := c.Versions[2].ImageURL; got != "y.png" {
		t.Fatalf("slot 2 url = %q, want y.png", got)
	}
	if c.Current != 0 {
		t.Fatalf("cursor moved to %d on resolve, want 0", c.Current)
	}
}

func TestResolveStaleTargets(t *testing.T) {
	c := NewChain("base.png")
	_, id, _ := c.Append("edit", "m", 0)
	if err := c.Resolve(id, "a.png"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := c.Resolve(id, "b.png"); !errors.Is(err, ErrStaleTarget) {
		t.Fatalf("double resolve err = %v, want ErrStaleTarget", err)
	}
	if err := c.Resolve("missing", "c.png"); !errors.Is(err, ErrStaleTarget) {
		t.Fatalf("unknown id err = %v, want ErrStaleTarget", err)
	}
	if err := c.Fail(id); !errors.Is(err, ErrStaleTarget) {
		t.Fatalf("fail after resolve err = %v, want ErrStaleTarget", err)
	}
}

func TestFailClearsImageURL(t *testing.T) {
	c := NewChain("base.png")
	_, id, _ := c.Append("edit", "m", 0)
	if err := c.Fail(id); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if c.Versions[1].Status != VersionError {
		t.Fatalf("status = %q, want error", c.Versions[1].Status)
	}
	if c.Versions[1].ImageURL != "" {
		t.Fatalf("error version has image url %q", c.Versions[1].ImageURL)
	}
}

func TestNavigateClamps(t *testing.T) {
	c := NewChain("base.png")
	_, id, _ := c.Append("edit", "m", 0)
	_ = c.Resolve(id, "a.png")

	tests := []struct {
		name  string
		index int
		want  int
	}{
		{"below range", -3, 0},
		{"in range", 1, 1},
		{"above range", 9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.Navigate(tt.index)
			if c.Current != tt.want {
				t.Fatalf("cursor = %d, want %d", c.Current, tt.want)
			}
		})
	}
}

func TestDeleteAtGuards(t *testing.T) {
	c := NewChain("base.png")
	_, id, _ := c.Append("edit", "m", 0)

	if err := c.DeleteAt(1); !errors.Is(err, ErrVersionProcessing) {
		t.Fatalf("delete processing err = %v, want ErrVersionProcessing", err)
	}
	_ = c.Resolve(id, "a.png")
	if err := c.DeleteAt(0); !errors.Is(err, ErrLockedRoot) {
		t.Fatalf("delete root err = %v, want ErrLockedRoot", err)
	}
	if err := c.DeleteAt(5); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("delete out of range err = %v, want ErrInvalidIndex", err)
	}
}

func TestDeleteAtRejectsReferencedParent(t *testing.T) {
	c := NewChain("base.png")
	_, idA, _ := c.Append("first", "m", 0)
	_ = c.Resolve(idA, "a.png")
	_, idB, _ := c.Append("second", "m", 1)
	_ = c.Resolve(idB, "b.png")

	if err := c.DeleteAt(1); !errors.Is(err, ErrVersionReferenced) {
		t.Fatalf("err = %v, want ErrVersionReferenced", err)
	}
	if err := c.DeleteAt(2); err != nil {
		t.Fatalf("delete leaf: %v", err)
	}
	if err := c.DeleteAt(1); err != nil {
		t.Fatalf("delete after leaf removed: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}

func TestDeleteAtRenumbersParents(t *testing.T) {
	c := NewChain("base.png")
	_, idA, _ := c.Append("a", "m", 0) // index 1
	_ = c.Resolve(idA, "a.png")
	_, idB, _ := c.Append("b", "m", 0) // index 2, parent 0
	_ = c.Resolve(idB, "b.png")
	_, idC, _ := c.Append("c", "m", 2) // index 3, parent 2
	_ = c.Resolve(idC, "c.png")

	// Deleting index 1 shifts b,c down; c's parent pointer must follow b.
	if err := c.DeleteAt(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if c.Versions[1].Prompt != "b" || c.Versions[1].ParentIndex != 0 {
		t.Fatalf("slot 1 = %q parent %d, want b parent 0", c.Versions[1].Prompt, c.Versions[1].ParentIndex)
	}
	if c.Versions[2].Prompt != "c" || c.Versions[2].ParentIndex != 1 {
		t.Fatalf("slot 2 = %q parent %d, want c parent 1", c.Versions[2].Prompt, c.Versions[2].ParentIndex)
	}
}

func TestDeleteAtMovesCursor(t *testing.T) {
	c := NewChain("base.png")
	for i := 0; i < 3; i++ {
		_, id, _ := c.Append("edit", "m", 0)
		_ = c.Resolve(id, "v.png")
	}

	c.Navigate(2)
	if err := c.DeleteAt(2); err != nil {
		t.Fatalf("delete current: %v", err)
	}
	if c.Current != 1 {
		t.Fatalf("cursor = %d, want 1", c.Current)
	}

	c.Navigate(2)
	if err := c.DeleteAt(1); err != nil {
		t.Fatalf("delete below current: %v", err)
	}
	if c.Current != 0 {
		t.Fatalf("cursor = %d, want 0", c.Current)
	}
}

func TestBeginResizeDeduplicatesInFlight(t *testing.T) {
	var list []ResizedVersion
	list, err := BeginResize(list, "9:16")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := BeginResize(list, "9:16"); !errors.Is(err, ErrResizeInFlight) {
		t.Fatalf("second begin err = %v, want ErrResizeInFlight", err)
	}
	if len(list) != 1 {
		t.Fatalf("entries = %d, want 1", len(list))
	}
	if err := FinishResize(list, "9:16", "resized.png", false); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if list[0].Status != ResizeCompleted || list[0].ImageURL != "resized.png" {
		t.Fatalf("entry = %+v, want completed resized.png", list[0])
	}

	// Regenerating the same size in place is allowed once settled.
	list, err = BeginResize(list, "9:16")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("entries after regenerate = %d, want 1", len(list))
	}
	if err := FinishResize(list, "9:16", "", true); err != nil {
		t.Fatalf("finish failed resize: %v", err)
	}
	if list[0].Status != ResizeError || list[0].ImageURL != "" {
		t.Fatalf("entry = %+v, want error with empty url", list[0])
	}
}

func TestFinishResizeStaleSize(t *testing.T) {
	if err := FinishResize(nil, "1:1", "x.png", false); !errors.Is(err, ErrStaleTarget) {
		t.Fatalf("err = %v, want ErrStaleTarget", err)
	}
}
