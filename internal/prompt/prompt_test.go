package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"nordbot/internal/domain"
)

var passages = []domain.Passage{
	{Text: "The Stage 3 has three sound engines...", Score: 0.91},
	{Text: "The Electro 6 is lightweight...", Score: 0.84},
}

func TestAnswer_Deterministic(t *testing.T) {
	q := "Which Nord is best for live performance?"
	assert.Equal(t, Answer(q, passages), Answer(q, passages))
}

func TestAnswer_Order(t *testing.T) {
	q := "Which Nord is best for live performance?"
	p := Answer(q, passages)

	assert.True(t, strings.HasPrefix(p, Persona()))
	iStage := strings.Index(p, passages[0].Text)
	iElectro := strings.Index(p, passages[1].Text)
	iQuestion := strings.Index(p, q)
	assert.Greater(t, iStage, len(Persona())-1)
	assert.Greater(t, iElectro, iStage)
	assert.Greater(t, iQuestion, iElectro)
	assert.Contains(t, p, passages[0].Text+"\n"+passages[1].Text)
}

func TestContext(t *testing.T) {
	assert.Equal(t, "", Context(nil))
	assert.Equal(t, "a\nb", Context([]domain.Passage{{Text: "a"}, {Text: "b"}}))
}

func TestStagePrompts(t *testing.T) {
	q := "How do I build a slow pad?"

	g := Grounding(q)
	assert.Contains(t, g, "User Query: "+q)
	assert.True(t, strings.HasSuffix(g, "Entities and Concepts related to Nord keyboards, tones, and patches:"))

	r := RAG(q, passages)
	assert.Contains(t, r, "User Query: "+q)
	assert.True(t, strings.HasSuffix(r, "\nContext:\n"+Context(passages)))

	s := Synthesis("pads, attack", "Use a long attack.")
	assert.Contains(t, s, "Grounding Search Results: pads, attack\n")
	assert.Contains(t, s, "RAG Search Results: Use a long attack.\n")
}

func TestPromptsDoNotEscape(t *testing.T) {
	q := `Is the "Stage 4" <better> than the Piano 5 & Electro 6?`
	assert.Contains(t, Answer(q, nil), q)
}
