package themes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

func TestGetTheme(t *testing.T) {
	assert.Equal(t, CatppuccinMocha.Primary, GetTheme("catppuccin-mocha").Primary)
	assert.Equal(t, Default.Primary, GetTheme("unknown").Primary)
}

func TestTheme_Outcome(t *testing.T) {
	theme := Default
	assert.Equal(t, theme.StatusSuccess.GetForeground(), theme.Outcome(model.OutcomeTP).GetForeground())
	assert.Equal(t, theme.StatusSuccess.GetForeground(), theme.Outcome(model.OutcomeTN).GetForeground())
	assert.Equal(t, theme.StatusError.GetForeground(), theme.Outcome(model.OutcomeFP).GetForeground())
	assert.Equal(t, theme.StatusError.GetForeground(), theme.Outcome(model.OutcomeFN).GetForeground())
	assert.Equal(t, theme.StatusPending.GetForeground(), theme.Outcome("").GetForeground())
}
