package datasets

import "sort"

// Special vocabulary tokens. Chain decoding starts at BegToken and stops at
// EndToken; unknown words map to UnkToken.
const (
	PadToken = "#PAD"
	BegToken = "#BEG"
	EndToken = "#END"
	UnkToken = "#UNK"
)

// Vocab maps tokens to contiguous ids and back.
type Vocab struct {
	ids    map[string]int
	tokens []string
}

// NewVocab builds a vocabulary over the given tokens. The special tokens
// always occupy the first four ids; the rest are sorted for a stable layout.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{ids: make(map[string]int)}
	for _, t := range []string{PadToken, BegToken, EndToken, UnkToken} {
		v.add(t)
	}
	uniq := make([]string, 0, len(tokens))
	seen := make(map[string]bool)
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			uniq = append(uniq, t)
		}
	}
	sort.Strings(uniq)
	for _, t := range uniq {
		v.add(t)
	}
	return v
}

func (v *Vocab) add(tok string) {
	if _, ok := v.ids[tok]; ok {
		return
	}
	v.ids[tok] = len(v.tokens)
	v.tokens = append(v.tokens, tok)
}

// Len returns the vocabulary size.
func (v *Vocab) Len() int { return len(v.tokens) }

// ID returns the id of tok, or the unknown id.
func (v *Vocab) ID(tok string) int {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return v.ids[UnkToken]
}

// Beg returns the id of the decode start token.
func (v *Vocab) Beg() int { return v.ids[BegToken] }

// End returns the id of the decode stop token.
func (v *Vocab) End() int { return v.ids[EndToken] }

// Token returns the token with the given id, or the unknown token for out
// of range ids.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnkToken
	}
	return v.tokens[id]
}

// Encode maps tokens to ids.
func (v *Vocab) Encode(tokens []string) []int {
	out := make([]int, len(tokens))
	for i, t := range tokens {
		out[i] = v.ID(t)
	}
	return out
}

// Decode maps ids back to tokens, dropping the stop token and anything
// after it.
func (v *Vocab) Decode(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == v.End() {
			break
		}
		out = append(out, v.Token(id))
	}
	return out
}
