package bpe

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/example/kannada-bpe/internal/segment"
	"github.com/sourcegraph/conc/pool"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Progress is reported once per accepted merge.
type Progress struct {
	Merge     Merge
	Done      int // merges accepted so far, including this one
	Target    int // merges requested
	Frequency int // corpus frequency of the merged pair
}

type trainOptions struct {
	workers        int
	logger         *slog.Logger
	logEvery       int
	progress       func(Progress)
	seg            *segment.Segmenter
	patternVersion int
}

func defaultTrainOptions() trainOptions {
	return trainOptions{
		workers:        runtime.GOMAXPROCS(0),
		logger:         slog.Default(),
		logEvery:       500,
		seg:            segment.Default(),
		patternVersion: segment.PatternVersion,
	}
}

// TrainOption configures Train.
type TrainOption func(*trainOptions)

// WithWorkers sets the number of shards pair counting and merging are split
// into. n <= 0 selects GOMAXPROCS. The result does not depend on n.
func WithWorkers(n int) TrainOption {
	return func(o *trainOptions) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}

// WithLogger sets the logger used for training progress.
func WithLogger(l *slog.Logger) TrainOption {
	return func(o *trainOptions) { o.logger = l }
}

// WithLogEvery logs an info line every n merges (debug lines are emitted for
// every merge). n <= 0 disables the periodic info line.
func WithLogEvery(n int) TrainOption {
	return func(o *trainOptions) { o.logEvery = n }
}

// WithProgress registers a callback invoked after every merge.
func WithProgress(fn func(Progress)) TrainOption {
	return func(o *trainOptions) { o.progress = fn }
}

// WithSegmenter trains with a custom segmenter instead of the built-in Kannada
// pattern. The resulting vocabulary records pattern version 0.
func WithSegmenter(s *segment.Segmenter) TrainOption {
	return func(o *trainOptions) {
		o.seg = s
		if s.Pattern() == segment.Pattern {
			o.patternVersion = segment.PatternVersion
		} else {
			o.patternVersion = 0
		}
	}
}

// ---------------------------------------------------------------------------
// Train
// ---------------------------------------------------------------------------

// Train learns vocabSize-BaseSize merges from corpus.
//
// Each iteration merges the most frequent adjacent pair over all chunks. Ties
// go to the smallest pair, comparing Left then Right. Training stops early once
// no pair occurs at least twice; an empty corpus yields the base vocabulary.
//
// ctx is checked once per merge. When it is cancelled Train returns the
// vocabulary built from the merges accepted so far together with ctx.Err().
func Train(ctx context.Context, corpus string, vocabSize int, opts ...TrainOption) (*Vocabulary, error) {
	if vocabSize < BaseSize {
		return nil, fmt.Errorf("%w: requested %d, base alphabet has %d", ErrVocabSize, vocabSize, BaseSize)
	}

	o := defaultTrainOptions()
	for _, fn := range opts {
		fn(&o)
	}

	log := o.logger
	start := time.Now()

	words := collectWords(o.seg, corpus)
	shards := splitShards(words, o.workers)
	target := vocabSize - BaseSize

	log.Info("bpe training started",
		slog.Int("corpus_bytes", len(corpus)),
		slog.Int("unique_chunks", len(words)),
		slog.Int("target_merges", target),
		slog.Int("shards", len(shards)),
	)

	counts := reduceCounts(shards)
	h := newPairHeap(counts)

	pairs := make([]Pair, 0, target)
	var stopErr error

	for len(pairs) < target {
		if err := ctx.Err(); err != nil {
			stopErr = err
			log.Warn("bpe training cancelled",
				slog.Int("merges", len(pairs)),
				slog.Int("target_merges", target),
			)
			break
		}

		best, freq, ok := h.popBest(counts)
		if !ok || freq < 2 {
			log.Info("bpe training saturated",
				slog.Int("merges", len(pairs)),
				slog.Int("target_merges", target),
			)
			break
		}

		id := BaseSize + len(pairs)
		pairs = append(pairs, best)

		for p, d := range mergeShards(shards, best, id) {
			c := counts[p] + d
			if c <= 0 {
				delete(counts, p)
				continue
			}
			counts[p] = c
			if d > 0 {
				heap.Push(h, pairCount{pair: p, count: c})
			}
		}

		m := Merge{Left: best.Left, Right: best.Right, ID: id}
		log.Debug("bpe merge",
			slog.Int("rank", m.Rank()),
			slog.Int("left", m.Left),
			slog.Int("right", m.Right),
			slog.Int("id", m.ID),
			slog.Int("frequency", freq),
		)
		if o.logEvery > 0 && len(pairs)%o.logEvery == 0 {
			log.Info("bpe training progress",
				slog.Int("merges", len(pairs)),
				slog.Int("target_merges", target),
				slog.Int("frequency", freq),
				slog.Duration("elapsed", time.Since(start)),
			)
		}
		if o.progress != nil {
			o.progress(Progress{Merge: m, Done: len(pairs), Target: target, Frequency: freq})
		}
	}

	v, err := newVocabulary(pairs, o.seg, o.patternVersion)
	if err != nil {
		// Training only ever references existing ids.
		return nil, fmt.Errorf("bpe: internal error building trained vocabulary: %w", err)
	}

	log.Info("bpe training finished",
		slog.Int("vocab_size", v.Size()),
		slog.Int("merges", v.NumMerges()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return v, stopErr
}

// ---------------------------------------------------------------------------
// Corpus preparation
// ---------------------------------------------------------------------------

// word is a distinct chunk of the corpus and how often it occurs.
type word struct {
	ids   []int
	count int
}

// collectWords segments corpus and folds identical chunks together. Words are
// sorted by chunk text so shard assignment is reproducible.
func collectWords(seg *segment.Segmenter, corpus string) []word {
	freq := make(map[string]int)
	for _, c := range seg.Segment(corpus) {
		freq[c]++
	}

	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	words := make([]word, len(keys))
	for i, k := range keys {
		words[i] = word{ids: BaseIDs(k), count: freq[k]}
	}

	return words
}

// ---------------------------------------------------------------------------
// Shards
// ---------------------------------------------------------------------------

// shard owns a disjoint slice of the words; only one goroutine touches a shard
// at a time.
type shard struct {
	words []word
	// where indexes the words a pair may occur in. Entries can be stale; a
	// stale entry only costs a scan.
	where map[Pair]map[int]struct{}
}

func splitShards(words []word, n int) []*shard {
	if n < 1 {
		n = 1
	}
	if n > len(words) {
		n = len(words)
	}
	if n == 0 {
		return nil
	}

	shards := make([]*shard, 0, n)
	size := (len(words) + n - 1) / n
	for lo := 0; lo < len(words); lo += size {
		hi := min(lo+size, len(words))
		shards = append(shards, newShard(words[lo:hi]))
	}

	return shards
}

func newShard(words []word) *shard {
	s := &shard{words: words, where: make(map[Pair]map[int]struct{})}
	for i, w := range words {
		for j := 0; j+1 < len(w.ids); j++ {
			s.index(Pair{Left: w.ids[j], Right: w.ids[j+1]}, i)
		}
	}

	return s
}

func (s *shard) index(p Pair, i int) {
	set, ok := s.where[p]
	if !ok {
		set = make(map[int]struct{})
		s.where[p] = set
	}
	set[i] = struct{}{}
}

func (s *shard) pairCounts() map[Pair]int {
	counts := make(map[Pair]int)
	for _, w := range s.words {
		for j := 0; j+1 < len(w.ids); j++ {
			counts[Pair{Left: w.ids[j], Right: w.ids[j+1]}] += w.count
		}
	}

	return counts
}

// merge rewrites every word containing p and returns the resulting change in
// pair counts for this shard.
func (s *shard) merge(p Pair, id int) map[Pair]int {
	idx := s.where[p]
	delete(s.where, p)

	delta := make(map[Pair]int)
	for i := range idx {
		w := &s.words[i]
		if !containsPair(w.ids, p) {
			continue
		}

		for j := 0; j+1 < len(w.ids); j++ {
			delta[Pair{Left: w.ids[j], Right: w.ids[j+1]}] -= w.count
		}

		w.ids = replacePair(w.ids, p, id)

		for j := 0; j+1 < len(w.ids); j++ {
			q := Pair{Left: w.ids[j], Right: w.ids[j+1]}
			delta[q] += w.count
			s.index(q, i)
		}
	}

	return delta
}

// reduceCounts counts pairs in every shard concurrently and sums the results.
func reduceCounts(shards []*shard) map[Pair]int {
	return sumDeltas(runShards(shards, func(s *shard) map[Pair]int {
		return s.pairCounts()
	}))
}

// mergeShards applies a merge to every shard concurrently and returns the
// summed change in pair counts.
func mergeShards(shards []*shard, p Pair, id int) map[Pair]int {
	return sumDeltas(runShards(shards, func(s *shard) map[Pair]int {
		return s.merge(p, id)
	}))
}

func runShards(shards []*shard, fn func(*shard) map[Pair]int) []map[Pair]int {
	if len(shards) == 1 {
		return []map[Pair]int{fn(shards[0])}
	}

	p := pool.NewWithResults[map[Pair]int]().WithMaxGoroutines(max(len(shards), 1))
	for _, s := range shards {
		p.Go(func() map[Pair]int { return fn(s) })
	}

	return p.Wait()
}

func sumDeltas(parts []map[Pair]int) map[Pair]int {
	if len(parts) == 1 {
		return parts[0]
	}

	total := make(map[Pair]int)
	for _, part := range parts {
		for p, c := range part {
			total[p] += c
		}
	}

	return total
}

// ---------------------------------------------------------------------------
// Pair selection
// ---------------------------------------------------------------------------

type pairCount struct {
	pair  Pair
	count int
}

// pairHeap orders candidates by count, highest first, then by smallest pair.
// Entries go stale as counts change; popBest discards or refreshes them.
type pairHeap []pairCount

func newPairHeap(counts map[Pair]int) *pairHeap {
	h := make(pairHeap, 0, len(counts))
	for p, c := range counts {
		h = append(h, pairCount{pair: p, count: c})
	}
	heap.Init(&h)

	return &h
}

func (h pairHeap) Len() int { return len(h) }
func (h pairHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count > h[j].count
	}
	return h[i].pair.less(h[j].pair)
}
func (h pairHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *pairHeap) Push(x any)   { *h = append(*h, x.(pairCount)) }
func (h *pairHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// popBest returns the pair with the highest current count, ties broken by the
// smallest pair. Every pair whose count grew was pushed with its new count, so
// the first entry that matches counts is the true maximum.
func (h *pairHeap) popBest(counts map[Pair]int) (Pair, int, bool) {
	for h.Len() > 0 {
		c := heap.Pop(h).(pairCount)
		cur := counts[c.pair]
		if cur == c.count {
			return c.pair, cur, true
		}
		if cur > 0 && cur < c.count {
			heap.Push(h, pairCount{pair: c.pair, count: cur})
		}
	}

	return Pair{}, 0, false
}
