package ai

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type scriptedLLM struct {
	reply   string
	prompts []string
}

func (s *scriptedLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok {
				s.prompts = append(s.prompts, text.Text)
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *scriptedLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func testAgent(llm llms.Model) *Agent {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Agent{llm: llm, logger: l}
}

func TestSanitizeSQL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"SELECT count() FROM token_operations;", "SELECT count() FROM token_operations"},
		{"```sql\nSELECT kind FROM token_operations\n```", "SELECT kind FROM token_operations"},
		{"```\nSELECT 1 FROM token_operations\n```\nsome chatter", "SELECT 1 FROM token_operations"},
		{"sql SELECT mint FROM solana.token_operations", "SELECT mint FROM solana.token_operations"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeSQL(tc.in), tc.in)
	}
}

func TestValidateSQL(t *testing.T) {
	ok := []string{
		"SELECT count() FROM token_operations WHERE kind = 'mint_to'",
		"select sum(base_units) from solana.token_operations",
	}
	for _, q := range ok {
		assert.NoError(t, validateSQL(q), q)
	}

	bad := []string{
		"",
		"DELETE FROM token_operations",
		"SELECT * FROM swaps",
		"SELECT 1 FROM token_operations; DROP TABLE token_operations",
		"SELECT * FROM token_operations WHERE 1 IN (SELECT 1) UNION ALL SELECT * FROM system.tables",
	}
	for _, q := range bad {
		assert.Error(t, validateSQL(q), q)
	}
}

func TestCapLimit(t *testing.T) {
	assert.Equal(t, "SELECT kind FROM token_operations LIMIT 200", capLimit("SELECT kind FROM token_operations"))
	assert.Equal(t, "SELECT kind FROM token_operations limit 5", capLimit("SELECT kind FROM token_operations limit 5"))
}

func TestGenerateSQL(t *testing.T) {
	llm := &scriptedLLM{reply: "```sql\nSELECT count() FROM token_operations WHERE status = 'confirmed'\n```"}
	a := testAgent(llm)

	q, err := a.generateSQL(context.Background(), "how many confirmed operations?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT count() FROM token_operations WHERE status = 'confirmed' LIMIT 200", q)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "Table: token_operations")
	assert.Equal(t, "how many confirmed operations?", llm.prompts[1])
}

func TestGenerateSQL_RejectsUnsafeQuery(t *testing.T) {
	a := testAgent(&scriptedLLM{reply: "DROP TABLE token_operations"})
	_, err := a.generateSQL(context.Background(), "clean up")
	assert.Error(t, err)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	llm := &scriptedLLM{}
	_, err := testAgent(llm).Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, llm.prompts)
}

func TestSummarise(t *testing.T) {
	llm := &scriptedLLM{reply: "  - 3 transfers  "}
	a := testAgent(llm)

	answer, err := a.summarise(context.Background(), "how many transfers?", "SELECT count() FROM token_operations", []map[string]any{{"count()": 3}})
	require.NoError(t, err)
	assert.Equal(t, "- 3 transfers", answer)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], `[{"count()":3}]`)
}
