package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancedocs/internal/folder/model"
)

func doc(required bool, status model.DocumentStatus) model.DocumentInstance {
	return model.DocumentInstance{Required: required, Status: status}
}

func TestRecompute(t *testing.T) {
	tests := []struct {
		name string
		docs []model.DocumentInstance
		want model.FolderStatus
	}{
		{
			name: "all required approved",
			docs: []model.DocumentInstance{doc(true, model.DocApproved), doc(true, model.DocApproved)},
			want: model.FolderApproved,
		},
		{
			name: "one required still pending",
			docs: []model.DocumentInstance{doc(true, model.DocApproved), doc(true, model.DocPending)},
			want: model.FolderSubmitted,
		},
		{
			name: "required rejection wins over pending",
			docs: []model.DocumentInstance{doc(true, model.DocPending), doc(true, model.DocRejected)},
			want: model.FolderRejected,
		},
		{
			name: "required expiry counts as rejection",
			docs: []model.DocumentInstance{doc(true, model.DocApproved), doc(true, model.DocExpired)},
			want: model.FolderRejected,
		},
		{
			name: "optional rejection never blocks",
			docs: []model.DocumentInstance{doc(true, model.DocApproved), doc(false, model.DocRejected)},
			want: model.FolderApproved,
		},
		{
			name: "optional pending never blocks",
			docs: []model.DocumentInstance{doc(true, model.DocApproved), doc(false, model.DocEmpty), doc(false, model.DocPending)},
			want: model.FolderApproved,
		},
		{
			name: "no required documents approves vacuously",
			docs: []model.DocumentInstance{doc(false, model.DocPending)},
			want: model.FolderApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recompute(tt.docs))
		})
	}
}

func TestRecomputeIsPure(t *testing.T) {
	docs := []model.DocumentInstance{
		doc(true, model.DocApproved),
		doc(true, model.DocPending),
		doc(false, model.DocRejected),
	}
	snapshot := make([]model.DocumentInstance, len(docs))
	copy(snapshot, docs)

	first := Recompute(docs)
	second := Recompute(docs)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, docs, "Recompute must not mutate its input")
}

// Approval requires unanimity of required documents, over randomized
// required/optional and status combinations.
func TestRecomputeApprovalUnanimity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []model.DocumentStatus{
		model.DocEmpty, model.DocPending, model.DocApproved, model.DocRejected, model.DocExpired,
	}

	for i := 0; i < 1000; i++ {
		n := 1 + rng.Intn(8)
		docs := make([]model.DocumentInstance, n)
		for j := range docs {
			docs[j] = doc(rng.Intn(2) == 0, statuses[rng.Intn(len(statuses))])
		}

		got := Recompute(docs)

		allRequiredApproved := true
		anyRequiredBad := false
		for _, d := range docs {
			if !d.Required {
				continue
			}
			if d.Status == model.DocRejected || d.Status == model.DocExpired {
				anyRequiredBad = true
			}
			if d.Status != model.DocApproved {
				allRequiredApproved = false
			}
		}

		switch {
		case anyRequiredBad:
			require.Equalf(t, model.FolderRejected, got, "docs: %+v", docs)
		case allRequiredApproved:
			require.Equalf(t, model.FolderApproved, got, "docs: %+v", docs)
		default:
			require.Equalf(t, model.FolderSubmitted, got, "docs: %+v", docs)
		}
	}
}
