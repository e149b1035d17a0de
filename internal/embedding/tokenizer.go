package embedding

import (
	"hash/fnv"

	"github.com/hyperjump/regclause/pkg/utils"
)

// BERT special token ids and the hashed vocabulary range.
const (
	clsToken  = 101
	sepToken  = 102
	vocabBase = 1000
	vocabSize = 29000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer lowercases text, splits it into alphanumeric words and maps each
// word to a hashed id. It does not reproduce a WordPiece vocabulary.
type SimpleTokenizer struct{}

// Tokenize produces [CLS] words... [SEP] padded to maxTokens (256 when non-positive).
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	pos := 1
	for _, word := range utils.Tokens(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = TokenID(word)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepToken
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// TokenID returns a deterministic id for word in the hashed vocabulary range.
func TokenID(word string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return vocabBase + int64(h.Sum32()%vocabSize)
}
