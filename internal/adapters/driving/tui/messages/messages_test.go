package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

func TestViewType_String(t *testing.T) {
	tests := []struct {
		view     ViewType
		expected string
	}{
		{ViewSearch, "search"},
		{ViewItem, "item"},
		{ViewHelp, "help"},
		{ViewType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.view.String())
		})
	}
}

func TestSearchCompleted_ReindexOutcome(t *testing.T) {
	msg := SearchCompleted{
		Query: "deploy",
		Outcome: domain.SearchOutcome{
			Reindex: &domain.ReindexRequired{QueryDimension: 384, StoredDimension: 768},
		},
	}

	assert.True(t, msg.Outcome.NeedsReindex())
	assert.Empty(t, msg.Outcome.Results)
	assert.NoError(t, msg.Err)
}

func TestItemLoaded_Error(t *testing.T) {
	err := errors.New("boom")
	msg := ItemLoaded{ItemID: "item-1", Err: err}

	assert.Nil(t, msg.Item)
	assert.Equal(t, err, msg.Err)
}

func TestResultSelected(t *testing.T) {
	msg := ResultSelected{Result: domain.RetrievalResult{ChunkID: "c1", KnowledgeItemID: "item-1"}}
	assert.Equal(t, "item-1", msg.Result.KnowledgeItemID)
}
