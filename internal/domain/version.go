package domain

import (
	"time"

	"github.com/google/uuid"
)

// VersionStatus enumerates the lifecycle states of a single image version.
type VersionStatus string

const (
	VersionProcessing VersionStatus = "processing"
	VersionCompleted  VersionStatus = "completed"
	VersionError      VersionStatus = "error"
)

// ImageVersion is one entry in an edit history. ImageURL is empty while the
// version is processing and stays empty when it resolves to an error. Prompt
// is empty for the root of a chain. ParentIndex is positional within the
// owning chain, -1 for the root; ID is stable across index shifts and is what
// in-flight reservations address.
type ImageVersion struct {
	ID          string        `json:"id"`
	ImageURL    string        `json:"image_url,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
	ParentIndex int           `json:"parent_index"`
	Status      VersionStatus `json:"status"`
	Model       string        `json:"model,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// VersionChain is the ordered, append-only edit history of one base version
// or variation, plus the cursor selecting the version currently displayed.
type VersionChain struct {
	Versions []ImageVersion `json:"versions"`
	Current  int            `json:"current_version_index"`
}

// NewChain seeds a chain with a completed root version for an image that is
// already available (upload or snapshot).
func NewChain(imageURL string) VersionChain {
	return VersionChain{
		Versions: []ImageVersion{{
			ID:          uuid.NewString(),
			ImageURL:    imageURL,
			ParentIndex: -1,
			Status:      VersionCompleted,
			CreatedAt:   time.Now().UTC(),
		}},
	}
}

// Len returns the number of versions in the chain.
func (c *VersionChain) Len() int { return len(c.Versions) }

// CurrentVersion returns the version under the cursor, or nil for an empty
// chain.
func (c *VersionChain) CurrentVersion() *ImageVersion {
	if len(c.Versions) == 0 || c.Current < 0 || c.Current >= len(c.Versions) {
		return nil
	}
	return &c.Versions[c.Current]
}

// Append reserves a processing placeholder derived from parentIndex and
// returns its index together with its stable ID. It never blocks and may be
// called repeatedly before any reservation resolves; each call yields a
// distinct slot.
func (c *VersionChain) Append(prompt, model string, parentIndex int) (int, string, error) {
	if parentIndex < 0 || parentIndex >= len(c.Versions) {
		return 0, "", ErrInvalidIndex
	}
	v := ImageVersion{
		ID:          uuid.NewString(),
		Prompt:      prompt,
		Model:       model,
		ParentIndex: parentIndex,
		Status:      VersionProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	c.Versions = append(c.Versions, v)
	return len(c.Versions) - 1, v.ID, nil
}

// IndexOf resolves a stable version ID to its current positional index,
// returning -1 when the version no longer exists.
func (c *VersionChain) IndexOf(id string) int {
	for i := range c.Versions {
		if c.Versions[i].ID == id {
			return i
		}
	}
	return -1
}

// Resolve completes the reservation identified by id. A resolution for a
// version that was deleted, or that already left the processing state,
// reports ErrStaleTarget so the caller can drop it silently.
func (c *VersionChain) Resolve(id, imageURL string) error {
	i := c.IndexOf(id)
	if i < 0 || c.Versions[i].Status != VersionProcessing {
		return ErrStaleTarget
	}
	c.Versions[i].Status = VersionCompleted
	c.Versions[i].ImageURL = imageURL
	return nil
}

// Fail marks the reservation identified by id as errored. Same staleness
// contract as Resolve.
func (c *VersionChain) Fail(id string) error {
	i := c.IndexOf(id)
	if i < 0 || c.Versions[i].Status != VersionProcessing {
		return ErrStaleTarget
	}
	c.Versions[i].Status = VersionError
	c.Versions[i].ImageURL = ""
	return nil
}

// Navigate moves the cursor, clamping to chain bounds rather than failing.
func (c *VersionChain) Navigate(index int) {
	if len(c.Versions) == 0 {
		c.Current = 0
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(c.Versions) {
		index = len(c.Versions) - 1
	}
	c.Current = index
}

// DeleteAt removes the version at index. Processing versions cannot be
// deleted (their reservation is still live), the root cannot be deleted
// through the chain, and a version that later versions point at as their
// parent is protected. Parent indices above the removed slot are renumbered
// so they keep pointing at the same versions.
func (c *VersionChain) DeleteAt(index int) error {
	if index < 0 || index >= len(c.Versions) {
		return ErrInvalidIndex
	}
	if index == 0 {
		return ErrLockedRoot
	}
	if c.Versions[index].Status == VersionProcessing {
		return ErrVersionProcessing
	}
	for i := range c.Versions {
		if i != index && c.Versions[i].ParentIndex == index {
			return ErrVersionReferenced
		}
	}
	c.Versions = append(c.Versions[:index], c.Versions[index+1:]...)
	for i := range c.Versions {
		if c.Versions[i].ParentIndex > index {
			c.Versions[i].ParentIndex--
		}
	}
	if index <= c.Current {
		c.Current = index - 1
		if c.Current < 0 {
			c.Current = 0
		}
	}
	return nil
}

// HasProcessing reports whether any reservation in the chain is unresolved.
func (c *VersionChain) HasProcessing() bool {
	for i := range c.Versions {
		if c.Versions[i].Status == VersionProcessing {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the chain.
func (c *VersionChain) Clone() VersionChain {
	out := VersionChain{Current: c.Current}
	out.Versions = append([]ImageVersion(nil), c.Versions...)
	return out
}
