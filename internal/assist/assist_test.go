package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/starford/edrak/internal/apperr"
)

type fakeGenerator struct {
	reply   string
	err     error
	model   string
	prompt  string
	config  *genai.GenerateContentConfig
	hasDead bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	_, f.hasDead = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func TestMissingKey(t *testing.T) {
	g, err := NewGemini(context.Background(), Config{}, nil)
	require.NoError(t, err)

	_, err = g.Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)
	assert.ErrorIs(t, err, apperr.ErrAssist)

	_, err = g.SuggestTags(context.Background(), "text")
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)
}

func TestSummarize(t *testing.T) {
	fake := &fakeGenerator{reply: "  A short summary.\n"}
	g := newGemini(fake, Config{Timeout: time.Second}, nil)

	got, err := g.Summarize(context.Background(), "long page text")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", got)
	assert.Equal(t, DefaultModel, fake.model)
	assert.True(t, strings.HasSuffix(fake.prompt, "long page text"))
	assert.Nil(t, fake.config)
	assert.True(t, fake.hasDead)
}

func TestSummarize_Error(t *testing.T) {
	fake := &fakeGenerator{err: errors.New("quota exceeded")}
	g := newGemini(fake, Config{Model: "custom-model"}, nil)

	_, err := g.Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, apperr.ErrAssist)
	assert.Equal(t, "custom-model", fake.model)
	assert.False(t, fake.hasDead)
}

func TestSuggestTags(t *testing.T) {
	fake := &fakeGenerator{reply: `["go", " notes ", "", "ai"]`}
	g := newGemini(fake, Config{Language: "Arabic"}, nil)

	tags, err := g.SuggestTags(context.Background(), "content")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "notes", "ai"}, tags)
	assert.Contains(t, fake.prompt, "Arabic")
	require.NotNil(t, fake.config)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	assert.Equal(t, genai.TypeArray, fake.config.ResponseSchema.Type)
}

func TestSuggestTags_BadJSON(t *testing.T) {
	g := newGemini(&fakeGenerator{reply: "not json"}, Config{}, nil)
	_, err := g.SuggestTags(context.Background(), "content")
	assert.ErrorIs(t, err, apperr.ErrAssist)
}

func TestSuggestTags_EmptyReply(t *testing.T) {
	g := newGemini(&fakeGenerator{reply: ""}, Config{}, nil)
	tags, err := g.SuggestTags(context.Background(), "content")
	require.NoError(t, err)
	assert.Empty(t, tags)
}
