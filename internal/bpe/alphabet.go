package bpe

// BaseSize is the number of base token ids. Base id b stands for the single
// byte b, so every input, including malformed UTF-8, has a base encoding.
const BaseSize = 256

// SymbolID returns the base token id of a byte.
func SymbolID(b byte) int { return int(b) }

// BaseIDs maps every byte of chunk to its base id.
func BaseIDs(chunk string) []int {
	ids := make([]int, len(chunk))
	for i := 0; i < len(chunk); i++ {
		ids[i] = SymbolID(chunk[i])
	}

	return ids
}

func baseTokens(capacity int) [][]byte {
	if capacity < BaseSize {
		capacity = BaseSize
	}

	tokens := make([][]byte, BaseSize, capacity)
	for b := range BaseSize {
		tokens[b] = []byte{byte(b)}
	}

	return tokens
}
