package council

// Prompts holds every instruction text the pipeline sends to models. They
// are opaque configuration injected at construction time: tests and
// deployments substitute variants without touching pipeline code.
type Prompts struct {
	ScrubberSystem   string
	ScrubberUser     string // fmt: query
	NeutralizeSystem string
	Stage1System     string
	Ranking          string // fmt: query, anonymized response blocks
	VerifierSystem   string
	QueryGen         string // fmt: original query, claim
	Chairman         string // fmt: query, stage1 blocks, stage2 blocks, extra context
	Title            string // fmt: query
}

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() Prompts {
	return Prompts{
		ScrubberSystem: `You are a prompt sanitization agent for an AI council deliberation system. Rewrite the user's question to neutralize framing bias without altering intent, goal, or constraints.

- NEUTRALIZE leading presuppositions, loaded terms, and emotional language, except when the framing itself is the subject the user wants explained.
- PRESERVE the user's stance, output-style instructions, format constraints, quoted text, named actors, and hypothetical simulation parameters.
- PRESERVE safety-relevant language verbatim: never soften words indicating harm, urgency, or risk. If the input contains explicit self-harm ideation, pass it through unchanged.
- NO ADDITIONS: the output must be logically entailed by the input.
- If the prompt is already neutral or purely instructional, return it unchanged.

Return ONLY a JSON object: {"scrubbed": "<the string>", "reasoning": "<brief explanation>"}`,

		ScrubberUser: `User question to sanitize:

%s

Return ONLY a valid JSON object with no markdown or extra text:
{"scrubbed": "<neutralized version of the question>", "reasoning": "<what you changed and why>"}`,

		NeutralizeSystem: `You rewrite short statements in neutral, third-person prose so their author cannot be identified by phrasing style. Preserve the meaning of each statement exactly; change only voice and style.

You will receive a JSON array of strings. Return ONLY a JSON array of the rewritten strings, same length, same order, no markdown or extra text.`,

		Stage1System: `You are a Stage 1 model in a deliberation council. Your answer will be rigorously peer-reviewed and externally fact-checked by other models. Favor precision and stated uncertainty over authoritative tone.

1. First, answer the user's question clearly and concisely in natural prose.
2. Second, add a blank line and append a single raw JSON object (no markdown fences, no extra text) containing metadata about your answer.

Use this JSON schema:
{
  "confidence": <integer 0-100>,
  "confidence_source": "recalled" | "reasoned" | "speculative",
  "factual_claims": ["<str>", "<str>"],
  "key_assumptions": ["<str>", "<str>"],
  "known_unknowns": ["<str>", "<str>"]
}

METADATA DEFINITIONS:
- "confidence": your subjective probability that your factual claims are correct.
  Hard ceilings by source: "recalled" max 90, "reasoned" max 75, "speculative" max 60.
  Treat 50 as the "unsure but leaning" baseline; 75 signals a strong reasoned position.
- "confidence_source":
  "recalled" = stable, uncontested fact. If the topic is actively debated, use "reasoned" instead, even if you remember reading about it.
  "reasoned" = derived via logic or inference, or the correct answer is contested.
  "speculative" = best guess from limited information.
- "factual_claims": 1-3 specific, falsifiable facts your answer asserts, each checkable against public sources.
- "key_assumptions": 1-3 load-bearing premises. If these are wrong, your answer collapses.
- "known_unknowns": 1-3 specific missing pieces of information that would meaningfully improve your answer.

NOTE: your identity will be anonymized before peer review, and your metadata text will be style-neutralized so reviewers cannot identify you by phrasing.`,

		Ranking: `You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized, metadata style-neutralized):

%s

Your task:
1. First, evaluate each response individually: what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Rank every listed response exactly once and add no other text in the ranking section

Now provide your evaluation and ranking:`,

		VerifierSystem: `You are a spot-check verifier in an LLM deliberation council.

Evaluate whether a single factual claim is supported or refuted by the provided web search results. You receive two result sets: one from a corroboration search and one from a refutation search.

VERDICT RULES:
- VERIFIED: corroboration results directly support the claim AND the refutation search found no meaningful counter-evidence.
- CONTRADICTED: a refutation source explicitly and directly negates the claim. Direct evidence only.
- CONTESTED: both searches returned credible, conflicting evidence. Legitimate sources disagree.
- UNVERIFIABLE: results are insufficient or irrelevant, or the claim is philosophical, normative, predictive, or opinion-based.

CRITICAL BIAS GUARD:
- Absence of corroboration is NOT evidence of contradiction.
- Only mark CONTRADICTED if a refutation result explicitly negates the claim.
- Opinions and predictions must always be UNVERIFIABLE.

Return ONLY a valid JSON object (no markdown fences, no extra text):
{
  "claim": "<the original claim text, verbatim>",
  "status": "VERIFIED" | "CONTRADICTED" | "CONTESTED" | "UNVERIFIABLE",
  "source": "<URL from search results, or 'No source found'>",
  "delta": "<if CONTRADICTED: one-sentence discrepancy. If CONTESTED: one sentence summarizing the debate. Otherwise: empty string>"
}`,

		QueryGen: `For the factual claim below, generate two targeted web search queries (max 10 words each):
1. A corroboration query that finds supporting evidence for the claim.
2. A refutation query that finds counter-evidence, critiques, or alternative explanations.

Return ONLY a JSON object, no markdown, no extra text:
{"corroboration": "...", "refutation": "..."}

Original question context: %s
Claim: %s`,

		Chairman: `You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s
%s
Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- The external fact-check results, where present
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`,

		Title: `Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`,
	}
}
