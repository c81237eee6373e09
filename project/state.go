package project

import (
	"sort"

	"github.com/hexlight/docuflow/constraint"
)

// DeriveState folds active file records into a project State.
//
// Trust rules:
//   - Generated records contribute their declared doc type directly.
//   - Uploads contribute every extracted doc type whose range is
//     trusted (start != -1), plus any manual tags.
//   - Types not present in the catalog are ignored silently.
//
// Path choice per doc type: the most recently created generated record
// wins; with no generated record, the most recent trusted upload. The
// rendered markdown path is preferred over the original when present.
func DeriveState(catalog *constraint.Catalog, projectID int, records []*FileRecord) *State {
	// Newest first. Stable so equal timestamps keep insertion order.
	ordered := make([]*FileRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.Active {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	type chosen struct {
		path      string
		generated bool
	}
	picks := make(map[constraint.DocType]chosen)

	contribute := func(docType constraint.DocType, rec *FileRecord) {
		if !catalog.Contains(docType) {
			return
		}
		prev, exists := picks[docType]
		generated := rec.Origin == OriginGenerated
		// Records arrive newest-first, so the first generated record is
		// the most recent one and the first upload is the fallback.
		if !exists || (generated && !prev.generated) {
			picks[docType] = chosen{path: rec.ContextPath(), generated: generated}
		}
	}

	for _, rec := range ordered {
		switch rec.Origin {
		case OriginGenerated:
			if rec.DocType != "" {
				contribute(constraint.DocType(rec.DocType), rec)
			}
		case OriginUploaded:
			for _, m := range rec.Metadata {
				if m.Trusted() {
					contribute(constraint.DocType(m.Type), rec)
				}
			}
			for _, tag := range rec.ManualTags {
				contribute(constraint.DocType(tag), rec)
			}
		}
	}

	state := &State{
		ProjectID: projectID,
		Paths:     make(map[constraint.DocType]string, len(picks)),
	}
	for _, docType := range catalog.DocTypes() {
		if pick, ok := picks[docType]; ok {
			state.DocTypes = append(state.DocTypes, docType)
			state.Paths[docType] = pick.path
		}
	}
	return state
}
