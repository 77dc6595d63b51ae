package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestFormatters(t *testing.T) {
	assert.Contains(t, FormatSuccess("saved"), "saved")
	assert.Contains(t, FormatError("failed"), ErrorIcon)
	assert.Contains(t, FormatTitle("Results"), ReceiptIcon)
	assert.Contains(t, RenderBox("Totals", "TP 3"), "TP 3")
}

func TestOutcomeStyle(t *testing.T) {
	tests := []struct {
		want    lipgloss.TerminalColor
		outcome model.Outcome
	}{
		{SuccessColor, model.OutcomeTP},
		{SuccessColor, model.OutcomeTN},
		{ErrorColor, model.OutcomeFP},
		{ErrorColor, model.OutcomeFN},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeStyle(tt.outcome).GetForeground())
			assert.Contains(t, FormatOutcome(tt.outcome), string(tt.outcome))
		})
	}
}

func TestScoreStyle(t *testing.T) {
	assert.Equal(t, SuccessStyle.GetForeground(), ScoreStyle(95, 70).GetForeground())
	assert.Equal(t, InfoStyle.GetForeground(), ScoreStyle(75, 70).GetForeground())
	assert.Equal(t, WarningStyle.GetForeground(), ScoreStyle(40, 70).GetForeground())
}

func TestProgress(t *testing.T) {
	var out syncBuffer
	p := NewProgress(4, &out, "Evaluating documents")

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Advance()
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, p.Current())

	p.Set(4)
	p.Finish()
	assert.Equal(t, 4, p.Current())
	assert.Contains(t, out.String(), "Evaluating documents")
}

func TestInterruptHandler(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output, "")
	ctx := handler.HandleInterrupts(context.Background())
	defer handler.Stop()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	handler.interrupt()
	handler.interrupt()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}

	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(output.String(), "Evaluation interrupted!"))
	assert.Contains(t, output.String(), "stay cached")
}

func TestInterruptHandler_Stop(t *testing.T) {
	handler := NewInterruptHandler(io.Discard, "Benchmark")
	ctx := handler.HandleInterrupts(context.Background())
	handler.Stop()
	handler.Stop()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "yes uppercase", input: "  YES \n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty", input: "\n", want: false},
		{name: "eof", input: "", want: false},
		{name: "no trailing newline", input: "yes", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := Confirm(context.Background(), strings.NewReader(tt.input), &out, "Delete run?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Delete run? [y/N]")
		})
	}
}

func TestConfirm_Canceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Confirm(ctx, pr, io.Discard, "Delete run?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}
