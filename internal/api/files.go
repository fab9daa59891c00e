package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"romdock/internal/apperrors"
	"romdock/internal/archive"
	"romdock/internal/bytefmt"
)

// fileEntry is one row in a directory listing. Size fields are omitted
// for directories.
type fileEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"isDir"`
	Size     *int64 `json:"size"`
	SizeStr  string `json:"sizeStr,omitempty"`
	Modified int64  `json:"modified"`
}

// FilesList handles GET /v1/files/list?path=
// Directories sort before files, both case-insensitively by name.
func (h *Handler) FilesList(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = h.cfg.LibraryDir
	}

	info, err := os.Stat(path)
	if err != nil {
		h.handleError(w, r, apperrors.NotFound("path", path))
		return
	}
	if !info.IsDir() {
		h.handleError(w, r, apperrors.Validation("path", "path is not a directory"))
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		// Unreadable directories list as empty, matching scandir behavior.
		entries = nil
	}

	items := make([]fileEntry, 0, len(entries))
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		item := fileEntry{
			Name:     entry.Name(),
			Path:     filepath.Join(path, entry.Name()),
			IsDir:    entry.IsDir(),
			Modified: fi.ModTime().Unix(),
		}
		if !item.IsDir {
			size := fi.Size()
			item.Size = &size
			item.SizeStr = bytefmt.Format(size)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})

	h.writeJSON(w, http.StatusOK, map[string]any{"entries": items})
}

// FilesSearch handles GET /v1/files/search?root=&type=archives|games
func (h *Handler) FilesSearch(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")
	if root == "" {
		root = h.cfg.LibraryDir
	}

	var (
		files []string
		err   error
	)
	switch r.URL.Query().Get("type") {
	case "archives":
		files, err = archive.Find(root, h.cfg.ArchiveExts)
	case "games":
		files, err = archive.FindGames(root, h.cfg.GameExts)
	default:
		h.handleError(w, r, apperrors.Validation("type", "type must be archives or games"))
		return
	}
	if err != nil {
		h.handleError(w, r, apperrors.Internal("search files", err))
		return
	}
	if files == nil {
		files = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// FilesConfig handles GET /v1/files/config - the library root and the
// extension sets clients filter on.
func (h *Handler) FilesConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"libraryDir":  h.cfg.LibraryDir,
		"archiveExts": sortedExts(h.cfg.ArchiveExts),
		"gameExts":    sortedExts(h.cfg.GameExts),
	})
}

func sortedExts(exts map[string]bool) []string {
	out := make([]string, 0, len(exts))
	for ext := range exts {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
