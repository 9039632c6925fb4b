package dictionary

// Fnv1a32 computes the 32-bit FNV-1a hash of s's UTF-8 bytes: seed
// 0x811C9DC5, h = (h XOR b) * 0x01000193 per byte, in 32-bit two's
// complement arithmetic.
func Fnv1a32(s string) uint32 {
	var h uint32 = 0x811C9DC5
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 0x01000193
	}
	return h
}

// whitespace is the fixed Unicode whitespace set tokenisation splits on.
var whitespace = map[rune]bool{
	0x00A0: true, 0x0009: true, 0x000A: true, 0x000B: true, 0x000C: true,
	0x000D: true, 0x0020: true, 0x0085: true, 0x1680: true,
	0x2000: true, 0x2001: true, 0x2002: true, 0x2003: true, 0x2004: true,
	0x2005: true, 0x2006: true, 0x2007: true, 0x2008: true, 0x2009: true,
	0x200A: true, 0x2028: true, 0x2029: true, 0x202F: true, 0x205F: true,
	0x3000: true,
}

// EOS is the sentinel token appended to every tokenised line.
const EOS = "</s>"

// Tokenize splits text on the fixed whitespace set, drops empty runs, and
// appends the </s> sentinel.
func Tokenize(text string) []string {
	var tokens []string
	var cur []rune
	for _, r := range text {
		if whitespace[r] {
			if len(cur) > 0 {
				tokens = append(tokens, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		tokens = append(tokens, string(cur))
	}
	tokens = append(tokens, EOS)
	return tokens
}

// widenSigned32 and rollNgramHash implement the word-n-gram rolling hash:
// h := h*116049371 + h2, where h2 is a token's 32-bit hash reinterpreted
// as a signed 32-bit integer widened to u64 (so negative values subtract
// under wraparound arithmetic), and the very first term in the chain is
// itself widened the same way.
func widenSigned32(h uint32) uint64 {
	return uint64(int64(int32(h)))
}

func rollNgramHash(h uint64, tokenHash uint32) uint64 {
	return h*116049371 + widenSigned32(tokenHash)
}
