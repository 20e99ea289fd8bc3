package bpe

import "errors"

var (
	// ErrVocabSize is returned by Train when the requested vocabulary is
	// smaller than the base alphabet.
	ErrVocabSize = errors.New("vocabulary size smaller than base alphabet")

	// ErrArtifactNotFound is returned by Load when the vocabulary file does
	// not exist. Callers usually respond by asking for a training run.
	ErrArtifactNotFound = errors.New("vocabulary artifact not found")

	// ErrInvalidArtifact is returned by Load when the vocabulary file cannot
	// be parsed or breaks the id/merge invariants.
	ErrInvalidArtifact = errors.New("invalid vocabulary artifact")

	// ErrUnknownToken is returned by Decode for ids outside the vocabulary.
	ErrUnknownToken = errors.New("unknown token id")
)
