package project

import (
	"testing"
	"time"

	"github.com/hexlight/docuflow/constraint"
)

var testCatalog = constraint.MustLoad(constraint.VariantEnhanced)

func rec(fn func(r *FileRecord)) *FileRecord {
	r := &FileRecord{
		ID:        "r1",
		ProjectID: 1,
		Origin:    OriginGenerated,
		Path:      "/files/1/doc.md",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	fn(r)
	return r
}

func TestDeriveStateTrustRules(t *testing.T) {
	tests := []struct {
		name    string
		records []*FileRecord
		want    []constraint.DocType
	}{
		{
			name:    "empty project",
			records: nil,
			want:    nil,
		},
		{
			name: "generated record contributes declared type",
			records: []*FileRecord{
				rec(func(r *FileRecord) { r.DocType = "srs" }),
			},
			want: []constraint.DocType{constraint.SRS},
		},
		{
			name: "upload contributes trusted ranges only",
			records: []*FileRecord{
				rec(func(r *FileRecord) {
					r.Origin = OriginUploaded
					r.Metadata = []DocRange{
						{Type: "user-stories", Start: 1, End: 40},
						{Type: "srs", Start: -1, End: -1}, // mentioned, never located
					}
				}),
			},
			want: []constraint.DocType{constraint.UserStories},
		},
		{
			name: "upload with raw-string type and no range is accepted",
			records: []*FileRecord{
				rec(func(r *FileRecord) {
					r.Origin = OriginUploaded
					r.Metadata = []DocRange{{Type: "risk-register"}}
				}),
			},
			want: []constraint.DocType{constraint.RiskRegister},
		},
		{
			name: "manual tags are trusted",
			records: []*FileRecord{
				rec(func(r *FileRecord) {
					r.Origin = OriginUploaded
					r.ManualTags = []string{"business-case"}
				}),
			},
			want: []constraint.DocType{constraint.BusinessCase},
		},
		{
			name: "unknown types ignored silently",
			records: []*FileRecord{
				rec(func(r *FileRecord) { r.DocType = "mystery-doc" }),
				rec(func(r *FileRecord) {
					r.Origin = OriginUploaded
					r.ManualTags = []string{"another-mystery", "scope-statement"}
				}),
			},
			want: []constraint.DocType{constraint.ScopeStatement},
		},
		{
			name: "inactive records do not contribute",
			records: []*FileRecord{
				rec(func(r *FileRecord) {
					r.DocType = "srs"
					r.Active = false
				}),
			},
			want: nil,
		},
		{
			name: "doc types come back in catalog order",
			records: []*FileRecord{
				rec(func(r *FileRecord) { r.DocType = "srs" }),
				rec(func(r *FileRecord) { r.DocType = "stakeholder-register" }),
				rec(func(r *FileRecord) { r.DocType = "hld-arch" }),
			},
			want: []constraint.DocType{
				constraint.StakeholderRegister,
				constraint.SRS,
				constraint.HLDArchitecture,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := DeriveState(testCatalog, 1, tt.records)
			if len(state.DocTypes) != len(tt.want) {
				t.Fatalf("DocTypes = %v, want %v", state.DocTypes, tt.want)
			}
			for i, d := range tt.want {
				if state.DocTypes[i] != d {
					t.Errorf("DocTypes[%d] = %s, want %s", i, state.DocTypes[i], d)
				}
			}
		})
	}
}

func TestDeriveStatePathPreference(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
	}

	t.Run("markdown path preferred over original", func(t *testing.T) {
		state := DeriveState(testCatalog, 1, []*FileRecord{
			rec(func(r *FileRecord) {
				r.Origin = OriginUploaded
				r.ManualTags = []string{"srs"}
				r.Path = "/files/1/srs.html"
				r.MarkdownPath = "/files/1/srs.md"
			}),
		})
		if got := state.Paths[constraint.SRS]; got != "/files/1/srs.md" {
			t.Errorf("path = %q, want rendered markdown path", got)
		}
	})

	t.Run("most recent generated wins over newer upload", func(t *testing.T) {
		state := DeriveState(testCatalog, 1, []*FileRecord{
			rec(func(r *FileRecord) {
				r.DocType = "srs"
				r.Path = "/files/1/srs-old.md"
				r.CreatedAt = day(1)
			}),
			rec(func(r *FileRecord) {
				r.DocType = "srs"
				r.Path = "/files/1/srs-new.md"
				r.CreatedAt = day(2)
			}),
			rec(func(r *FileRecord) {
				r.Origin = OriginUploaded
				r.ManualTags = []string{"srs"}
				r.Path = "/files/1/srs-upload.md"
				r.CreatedAt = day(3)
			}),
		})
		if got := state.Paths[constraint.SRS]; got != "/files/1/srs-new.md" {
			t.Errorf("path = %q, want most recent generated record", got)
		}
	})

	t.Run("newest trusted upload when nothing generated", func(t *testing.T) {
		state := DeriveState(testCatalog, 1, []*FileRecord{
			rec(func(r *FileRecord) {
				r.Origin = OriginUploaded
				r.ManualTags = []string{"srs"}
				r.Path = "/files/1/first.md"
				r.CreatedAt = day(1)
			}),
			rec(func(r *FileRecord) {
				r.Origin = OriginUploaded
				r.ManualTags = []string{"srs"}
				r.Path = "/files/1/second.md"
				r.CreatedAt = day(2)
			}),
		})
		if got := state.Paths[constraint.SRS]; got != "/files/1/second.md" {
			t.Errorf("path = %q, want newest upload", got)
		}
	})
}
