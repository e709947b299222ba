package llm

import tiktoken "github.com/pkoukk/tiktoken-go"

// fallbackEncoding is used for models tiktoken has no mapping for
// (e.g. models served through OpenAI-compatible gateways).
const fallbackEncoding = "cl100k_base"

// TruncateTokens cuts text down to at most maxTokens tokens under the
// given model's encoding. Page content can dwarf a model's context window;
// callers use this to budget how much of a page goes into a prompt.
//
// If no encoding can be resolved at all, it falls back to a conservative
// byte-length cut of four bytes per token.
func TruncateTokens(text, model string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}

// CountTokens returns the token count of text under the given model's
// encoding, or a four-bytes-per-token estimate if no encoding resolves.
func CountTokens(text, model string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
