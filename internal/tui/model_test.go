package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nordbot/internal/domain"
	"nordbot/internal/session"
)

type stubAsker struct {
	answer string
	err    error
	asked  []string
}

func (s *stubAsker) Ask(_ context.Context, sess *session.Session, q string) (string, error) {
	s.asked = append(s.asked, q)
	if s.err != nil {
		return "", s.err
	}
	sess.AppendTurn(q, s.answer)
	return s.answer, nil
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestModel_AskFlow(t *testing.T) {
	asker := &stubAsker{answer: "The Stage 3."}
	sess := session.New()
	m := sized(t, New(context.Background(), asker, sess))

	m.input.SetValue("  Which Nord is best for live performance?  ")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Equal(t, "Which Nord is best for live performance?", sess.Input())

	// a second Enter while busy is ignored
	_, cmd2 := press(m, tea.KeyEnter)
	assert.Nil(t, cmd2)

	msg := m.askCmd("Which Nord is best for live performance?")()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.busy)
	assert.Equal(t, []string{"Which Nord is best for live performance?"}, asker.asked)
	assert.Equal(t, "", m.input.Value())
	assert.Equal(t, "", sess.Input())
	assert.Equal(t, []domain.TranscriptEntry{
		{Role: domain.RoleUser, Content: "Which Nord is best for live performance?"},
		{Role: domain.RoleAssistant, Content: "The Stage 3."},
	}, sess.Transcript())
	assert.Contains(t, m.viewport.View(), "The Stage 3.")
}

func TestModel_EmptyInputDoesNothing(t *testing.T) {
	asker := &stubAsker{}
	m := sized(t, New(context.Background(), asker, session.New()))

	m.input.SetValue("   ")
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Empty(t, asker.asked)
}

func TestModel_ErrorShownInline(t *testing.T) {
	asker := &stubAsker{}
	sess := session.New()
	sess.AppendTurn("Does the Piano 5 have aftertouch?", "No.")
	m := sized(t, New(context.Background(), asker, sess))
	m.input.SetValue("What about the Stage 4?")
	m, _ = press(m, tea.KeyEnter)

	next, _ := m.Update(answerMsg{question: "What about the Stage 4?", err: errors.New("generation: quota exceeded")})
	m = next.(Model)

	assert.Equal(t, "An error occurred: generation: quota exceeded", m.errText)
	assert.Equal(t, "What about the Stage 4?", m.input.Value())
	assert.Equal(t, 2, sess.Len())
	assert.Contains(t, m.viewport.View(), "quota exceeded")
}

func TestModel_Reset(t *testing.T) {
	sess := session.New()
	sess.AppendTurn("q", "a")
	sess.SetInput("draft")
	m := sized(t, New(context.Background(), &stubAsker{}, sess))
	assert.Equal(t, "draft", m.input.Value())

	m, _ = press(m, tea.KeyCtrlR)
	assert.Empty(t, sess.Transcript())
	assert.Equal(t, "", sess.Input())
	assert.Equal(t, "", m.input.Value())
	assert.True(t, strings.Contains(m.viewport.View(), "Ask about the Nord"))
}

func TestRenderTranscript(t *testing.T) {
	assert.Equal(t, emptyTranscript, renderTranscript(nil, "", 40))

	out := renderTranscript([]domain.TranscriptEntry{
		{Role: domain.RoleUser, Content: "What is ADSR?"},
		{Role: domain.RoleAssistant, Content: "Attack, decay, sustain, release."},
	}, "", 0)
	iq := strings.Index(out, "What is ADSR?")
	ia := strings.Index(out, "Attack, decay")
	assert.True(t, iq >= 0 && ia > iq)
}
