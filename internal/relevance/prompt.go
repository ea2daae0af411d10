package relevance

import (
	"fmt"
	"strings"

	"github.com/54b3r/pmrag-go/internal/question"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// excerptLen is the number of abstract characters shown per candidate.
const excerptLen = 300

// digest renders the numbered candidate list the model scores.
func digest(candidates []rag.Candidate) string {
	parts := make([]string, 0, len(candidates))
	for i, c := range candidates {
		parts = append(parts, fmt.Sprintf("Article %d: \"%s\"\nAbstract: %s...",
			i+1, c.Title, excerpt(c.Abstract)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// excerpt returns the first excerptLen characters of s.
func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen])
}

// BuildPrompt renders the relevance-scoring prompt in the question's
// language. Candidates are numbered from 1 in the order given.
func BuildPrompt(q string, lang question.Language, candidates []rag.Candidate) string {
	if lang == question.Korean {
		return fmt.Sprintf(koreanTemplate, q, len(candidates), digest(candidates))
	}
	return fmt.Sprintf(englishTemplate, q, len(candidates), digest(candidates))
}

const englishTemplate = `You are a medical paper relevance evaluator.

User's question: "%s"

Read the titles and abstracts of the %d articles below and evaluate how relevant each is to the user's question.

**Evaluation Criteria:**
- Highly Relevant (9-10): Directly answers the question with core content
- Relevant (7-8): Related to the question and provides useful information
- Moderately Relevant (5-6): Related topic but indirect
- Somewhat Relevant (3-4): Related topic but not very helpful for answering
- Not Relevant (1-2): Little or no relevance

**Important: Don't be too strict. If a paper is indirectly helpful, give it 5-6 points or higher.**

**Respond ONLY in JSON format:**
` + "```json" + `
{
  "relevanceScores": [
    {"articleNumber": 1, "relevanceScore": 9, "reason": "explanation"},
    {"articleNumber": 2, "relevanceScore": 3, "reason": "explanation"}
  ]
}
` + "```" + `

**Articles:**
%s`

const koreanTemplate = `당신은 의학 논문 관련성 평가자입니다.

사용자의 질문: "%s"

아래의 %d개 논문 제목과 초록을 읽고, 각 논문이 사용자의 질문과 얼마나 관련이 있는지 평가하세요.

**평가 기준:**
- 매우 관련있음 (9-10): 질문에 직접적으로 답변할 수 있는 핵심 내용
- 관련있음 (7-8): 질문과 관련이 있고 유용한 정보 제공
- 보통 관련 (5-6): 질문 주제와 관련이 있지만 간접적
- 약간 관련 (3-4): 관련 주제이지만 질문 답변에는 크게 도움 안 됨
- 관련 없음 (1-2): 거의 또는 전혀 관련이 없음

**중요: 너무 엄격하게 평가하지 마세요. 간접적으로라도 도움이 되면 5-6점 이상을 주세요.**

**JSON 형식으로만 응답하세요:**
` + "```json" + `
{
  "relevanceScores": [
    {"articleNumber": 1, "relevanceScore": 9, "reason": "설명"},
    {"articleNumber": 2, "relevanceScore": 3, "reason": "설명"}
  ]
}
` + "```" + `

**논문들:**
%s`
