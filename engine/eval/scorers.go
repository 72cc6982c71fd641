package eval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/HomeGenieAI/homegenie-engine/engine/rag"
)

const judgeSystem = `You are a strict evaluation judge for a retrieval
question-answering system over Vietnamese real-estate listings. Reply with
a single number from 0 to 10 and nothing else.`

const faithfulnessPrompt = `Contexts:
%s

Answer:
%s

How well is every claim in the answer supported by the contexts above?
0 means unsupported or contradicted, 10 means fully supported. Reply with
a single number from 0 to 10.`

const relevancyPrompt = `Question:
%s

Answer:
%s

How directly does the answer address the question's intent? 0 means off
topic or evasive, 10 means a direct and complete answer. Reply with a
single number from 0 to 10.`

// Faithfulness scores whether the answer's claims follow from the
// retrieved contexts. The judgment is delegated to a chat model.
type Faithfulness struct {
	judge rag.ChatClient
}

// NewFaithfulness creates the faithfulness scorer.
func NewFaithfulness(judge rag.ChatClient) *Faithfulness {
	return &Faithfulness{judge: judge}
}

func (f *Faithfulness) Name() string { return "faithfulness" }

// Score implements Scorer. An empty context set scores zero without
// consulting the judge: an answer with nothing to stand on is by
// definition unsupported.
func (f *Faithfulness) Score(ctx context.Context, rec Record) (float64, error) {
	if len(rec.Contexts) == 0 {
		return 0, nil
	}
	prompt := fmt.Sprintf(faithfulnessPrompt, numbered(rec.Contexts), rec.Answer)
	reply, err := f.judge.Chat(ctx, judgeSystem, nil, prompt)
	if err != nil {
		return 0, fmt.Errorf("eval: faithfulness judge: %w", err)
	}
	return parseScore(reply)
}

// AnswerRelevancy scores whether the answer addresses the query's intent.
type AnswerRelevancy struct {
	judge rag.ChatClient
}

// NewAnswerRelevancy creates the answer-relevancy scorer.
func NewAnswerRelevancy(judge rag.ChatClient) *AnswerRelevancy {
	return &AnswerRelevancy{judge: judge}
}

func (a *AnswerRelevancy) Name() string { return "answer_relevancy" }

// Score implements Scorer.
func (a *AnswerRelevancy) Score(ctx context.Context, rec Record) (float64, error) {
	prompt := fmt.Sprintf(relevancyPrompt, rec.Query, rec.Answer)
	reply, err := a.judge.Chat(ctx, judgeSystem, nil, prompt)
	if err != nil {
		return 0, fmt.Errorf("eval: relevancy judge: %w", err)
	}
	return parseScore(reply)
}

func numbered(contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	return b.String()
}

// parseScore extracts the judge's 0-10 rating from its reply and maps it
// to [0,1]. Judges occasionally wrap the number in prose, so the first
// parseable token wins.
func parseScore(reply string) (float64, error) {
	for _, tok := range strings.Fields(reply) {
		tok = strings.Trim(tok, ".,:;%")
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		v /= 10
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return v, nil
	}
	return 0, fmt.Errorf("eval: no score in judge reply %q", reply)
}
