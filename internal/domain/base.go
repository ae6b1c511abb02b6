package domain

// OriginalBaseID is the reserved ID of the base version seeded from the
// uploaded image. It always exists once an image is uploaded.
const OriginalBaseID = "original"

// ResizeStatus enumerates the lifecycle of one size-adapted export.
type ResizeStatus string

const (
	ResizeIdle      ResizeStatus = "idle"
	ResizeResizing  ResizeStatus = "resizing"
	ResizeCompleted ResizeStatus = "completed"
	ResizeError     ResizeStatus = "error"
)

// ResizedVersion is one size-adapted export, keyed by its aspect-ratio label.
// There is at most one entry per size label per owner; regenerating a size
// overwrites the entry in place.
type ResizedVersion struct {
	Size     string       `json:"size"`
	ImageURL string       `json:"image_url,omitempty"`
	Status   ResizeStatus `json:"status"`
}

// BaseVersion is an independent root image with its own edit chain. The
// "original" base is seeded from the upload; additional bases are user
// snapshots of any currently viewed image.
type BaseVersion struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	BaseImageURL    string           `json:"base_image_url"`
	SourceLabel     string           `json:"source_label,omitempty"`
	Chain           VersionChain     `json:"chain"`
	ResizedVersions []ResizedVersion `json:"resized_versions,omitempty"`
}

// FindResize locates the entry for a size label, or nil.
func FindResize(list []ResizedVersion, size string) *ResizedVersion {
	for i := range list {
		if list[i].Size == size {
			return &list[i]
		}
	}
	return nil
}

// BeginResize transitions the entry for size into the resizing state,
// creating it when absent. A second request for a size that is already
// resizing reports ErrResizeInFlight and leaves the entry untouched.
func BeginResize(list []ResizedVersion, size string) ([]ResizedVersion, error) {
	if rv := FindResize(list, size); rv != nil {
		if rv.Status == ResizeResizing {
			return list, ErrResizeInFlight
		}
		rv.Status = ResizeResizing
		rv.ImageURL = ""
		return list, nil
	}
	return append(list, ResizedVersion{Size: size, Status: ResizeResizing}), nil
}

// FinishResize records the outcome of a resize keyed by its size label. An
// unknown size is a stale target.
func FinishResize(list []ResizedVersion, size, imageURL string, failed bool) error {
	rv := FindResize(list, size)
	if rv == nil || rv.Status != ResizeResizing {
		return ErrStaleTarget
	}
	if failed {
		rv.Status = ResizeError
		rv.ImageURL = ""
		return nil
	}
	rv.Status = ResizeCompleted
	rv.ImageURL = imageURL
	return nil
}
