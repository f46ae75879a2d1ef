package domain

import "time"

// LikesFolderID is the id of the distinguished folder every user owns whose
// contents mirror the liked feedback set. It cannot be deleted or renamed.
const LikesFolderID = "likes"

// MaxFolderNameLength bounds Folder.Name.
const MaxFolderNameLength = 120

// Folder is a user-owned ordered collection of paper references.
type Folder struct {
	FolderID    string    `json:"folderId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PaperIDs    []string  `json:"paperIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PaperCount is the derived size of the folder.
func (f *Folder) PaperCount() int {
	if f == nil {
		return 0
	}
	return len(f.PaperIDs)
}

// IsProtected reports whether the folder is the special "likes" folder.
func (f *Folder) IsProtected() bool {
	return f != nil && f.FolderID == LikesFolderID
}

// ContainsPaper reports whether paperID is already present in the folder.
func (f *Folder) ContainsPaper(paperID string) bool {
	if f == nil {
		return false
	}
	for _, id := range f.PaperIDs {
		if id == paperID {
			return true
		}
	}
	return false
}
