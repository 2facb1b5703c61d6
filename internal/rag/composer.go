package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/docqa/internal/index"
	"github.com/nikhilbhutani/docqa/internal/llm"
)

// GenerateError reports a generation failure after the gateway's retries
// are exhausted.
type GenerateError struct {
	Err error
}

func (e *GenerateError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerateError) Unwrap() error { return e.Err }

// Answer is a generated response together with the retrieval result that
// grounded it.
type Answer struct {
	Text    string        `json:"answer"`
	Query   string        `json:"query"`
	Sources []index.Match `json:"sources"`
	Model   string        `json:"model"`
	Tokens  int           `json:"tokens"`
}

const systemPrompt = `You are a document question-answering assistant. Answer the user's question using only the provided context.
If the answer is not contained in the context, say that the documents do not contain it. Cite sources as [Source N].`

type Composer struct {
	gateway          llm.Gateway
	provider         string
	model            string
	maxContextTokens int
}

// NewComposer builds answers with the given chat model. maxContextTokens
// bounds the assembled context block; zero means no bound.
func NewComposer(gw llm.Gateway, provider, model string, maxContextTokens int) *Composer {
	return &Composer{
		gateway:          gw,
		provider:         provider,
		model:            model,
		maxContextTokens: maxContextTokens,
	}
}

// Compose builds a prompt from the ranked matches and the question, invokes
// the generator deterministically (temperature zero) and returns the answer
// with its supporting sources.
func (c *Composer) Compose(ctx context.Context, query string, matches []index.Match) (*Answer, error) {
	contextBlock, used := c.buildContext(matches)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", contextBlock, query)},
	}

	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Provider:    c.provider,
		Model:       c.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		return nil, &GenerateError{Err: err}
	}

	return &Answer{
		Text:    resp.Content,
		Query:   query,
		Sources: used,
		Model:   resp.Model,
		Tokens:  resp.TotalTokens,
	}, nil
}

// buildContext concatenates match texts in ranked order. When a token budget
// is set, sources that would exceed it are dropped; the best match is always
// kept so the prompt never loses all grounding.
func (c *Composer) buildContext(matches []index.Match) (string, []index.Match) {
	var sb strings.Builder
	var used []index.Match
	budget := c.maxContextTokens

	for i, m := range matches {
		if budget > 0 && i > 0 && usedTokens(used)+m.Chunk.Tokens > budget {
			break
		}
		fmt.Fprintf(&sb, "[Source %d] (%s, page %d, score: %.3f)\n%s\n\n",
			i+1, m.Chunk.Document, m.Chunk.Page, m.Score, m.Chunk.Text)
		used = append(used, m)
	}
	return sb.String(), used
}

func usedTokens(matches []index.Match) int {
	total := 0
	for _, m := range matches {
		total += m.Chunk.Tokens
	}
	return total
}
