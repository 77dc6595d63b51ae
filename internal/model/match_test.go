package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchResult_Top(t *testing.T) {
	var empty MatchResult
	_, ok := empty.Top()
	assert.False(t, ok)
	assert.True(t, empty.Empty())

	result := MatchResult{
		{Row: LedgerRow{Source: "a.json"}, Score: 95},
		{Row: LedgerRow{Source: "b.json"}, Score: 80},
	}
	top, ok := result.Top()
	assert.True(t, ok)
	assert.Equal(t, "a.json", top.Row.Source)
	assert.False(t, result.Empty())
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "92.0%", FormatScore(92))
	assert.Equal(t, "100.0%", FormatScore(100))
	assert.Equal(t, "0.0%", FormatScore(0))
}

func TestDocumentResult_Outcome(t *testing.T) {
	doc := DocumentResult{Matrix: NewConfusionMatrix(CountsFor(OutcomeFP))}
	assert.Equal(t, OutcomeFP, doc.Outcome())
	assert.True(t, doc.Failed())

	doc.Record = &DocumentRecord{}
	assert.False(t, doc.Failed())
}
