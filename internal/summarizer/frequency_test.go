package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const article = `Heavy rain caused the river to flood villages in Assam. ` +
	`Officials said the flood killed twelve people. ` +
	`The weather was pleasant last week. ` +
	`Rescue teams reached flood victims by boat. ` +
	`A local festival was postponed.`

func TestSummarize_KeepsOrderAndLimit(t *testing.T) {
	f := NewFrequency()
	out, err := f.Summarize(article, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "."))
	assert.Contains(t, out, "flood")
	assert.NotContains(t, out, "festival")
}

func TestSummarize_ShortText(t *testing.T) {
	out, err := NewFrequency().Summarize("Only one sentence here.", 3)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", out)

	out, err = NewFrequency().Summarize("no terminal punctuation", 3)
	require.NoError(t, err)
	assert.Equal(t, "no terminal punctuation", out)
}

func TestCondense(t *testing.T) {
	f := NewFrequency()
	assert.Equal(t, article, f.Condense(article, len(article), 2))
	assert.Equal(t, article, f.Condense(article, 0, 2))

	out := f.Condense(article, 120, 2)
	assert.LessOrEqual(t, len(out), 120)
	assert.NotEmpty(t, out)
}

func TestCut_RuneBoundary(t *testing.T) {
	s := "été"
	assert.Equal(t, "é", cut(s, 2))
	assert.Equal(t, "ét", cut(s, 4))
	assert.Equal(t, "", cut(s, 1))
}
