package model

// License describes the usage license attached to a content node.
type License struct {
	// ID is the license identifier understood by the importer.
	ID string `json:"id"`

	// Name is the human-readable license name.
	Name string `json:"name"`

	// URL points at the license text.
	URL string `json:"url,omitempty"`

	// CopyrightHolder names the rights holder.
	CopyrightHolder string `json:"copyright_holder,omitempty"`
}

// CCBYNCSA returns the CC BY-NC-SA 4.0 license used by all Proyecto
// Descartes lessons.
func CCBYNCSA(copyrightHolder string) *License {
	return &License{
		ID:              "CC BY-NC-SA",
		Name:            "Creative Commons Attribution-NonCommercial-ShareAlike 4.0",
		URL:             "https://creativecommons.org/licenses/by-nc-sa/4.0/",
		CopyrightHolder: copyrightHolder,
	}
}
