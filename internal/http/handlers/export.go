package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"studio/internal/domain"
	"studio/internal/storage"
	"studio/pkg/zip"
)

type exportEntry struct {
	filename string
	url      string
}

// ExportZip bundles the session's deliverables into one archive: every base
// version's displayed image, every active variation's displayed image, and
// all completed resizes. Archived variations stay out.
func (a *App) ExportZip(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}

	var entries []exportEntry
	s.View(func(st *domain.State) {
		for i := range st.Bases {
			base := &st.Bases[i]
			if cur := base.Chain.CurrentVersion(); cur != nil && cur.ImageURL != "" {
				entries = append(entries, exportEntry{
					filename: exportName(base.Name, ""),
					url:      cur.ImageURL,
				})
			}
			for _, rv := range base.ResizedVersions {
				if rv.Status == domain.ResizeCompleted && rv.ImageURL != "" {
					entries = append(entries, exportEntry{
						filename: exportName(base.Name, rv.Size),
						url:      rv.ImageURL,
					})
				}
			}
		}
		for i := range st.Variations {
			v := &st.Variations[i]
			if v.IsArchived {
				continue
			}
			if img := v.DisplayedImageURL(); img != "" {
				entries = append(entries, exportEntry{filename: exportName(v.Title, ""), url: img})
			}
			for _, rv := range v.ResizedVersions {
				if rv.Status == domain.ResizeCompleted && rv.ImageURL != "" {
					entries = append(entries, exportEntry{filename: exportName(v.Title, rv.Size), url: rv.ImageURL})
				}
			}
		}
	})

	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "nothing to export")
		return
	}

	var assets []zip.Asset
	for _, e := range entries {
		data := a.loadAssetData(r, e.url)
		if data == nil {
			continue
		}
		assets = append(assets, zip.Asset{Filename: e.filename, Data: data})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no exportable assets")
		return
	}

	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=session-%s.zip", s.ID()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// loadAssetData fetches the bytes behind an export URL: local storage reads
// come from disk, data URLs are decoded, and anything remote is fetched over
// HTTP.
func (a *App) loadAssetData(r *http.Request, rawURL string) []byte {
	if strings.HasPrefix(rawURL, "data:") {
		_, data, err := storage.DecodeDataURL(rawURL)
		if err != nil {
			return nil
		}
		return data
	}
	if a.Files != nil {
		prefix := a.Files.BaseURL() + "/"
		if a.Files.BaseURL() != "" && strings.HasPrefix(rawURL, prefix) {
			data, err := a.Files.Read(r.Context(), strings.TrimPrefix(rawURL, prefix))
			if err == nil {
				return data
			}
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil
	}
	return data
}

func exportName(label, size string) string {
	name := strings.ToLower(strings.TrimSpace(label))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, name)
	if name == "" {
		name = "asset"
	}
	if size != "" {
		name += "-" + strings.ReplaceAll(size, ":", "x")
	}
	return name + ".png"
}
