// Package batch groups sentences into token-bounded batches for a
// translation backend.
package batch

// DefaultBytesPerToken approximates subword tokenizers on Latin text.
const DefaultBytesPerToken = 4

// Estimator returns the estimated token count of a sentence.
type Estimator func(s string) int

// ByteEstimator approximates tokens as ceil(len(utf8 bytes) / bytesPerToken).
// bytesPerToken <= 0 uses DefaultBytesPerToken.
func ByteEstimator(bytesPerToken int) Estimator {
	bpt := bytesPerToken
	if bpt <= 0 {
		bpt = DefaultBytesPerToken
	}
	return func(s string) int {
		n := len(s)
		if n == 0 {
			return 0
		}
		return (n + bpt - 1) / bpt
	}
}

// Limits bound a single batch. A zero or negative field disables that ceiling.
type Limits struct {
	MaxTokens int
	MaxItems  int
}

// Batch is an ordered group of sentences and their estimated token total.
type Batch struct {
	Items  []string
	Tokens int
}

// Oversized reports whether the batch exceeds the token ceiling. Only a
// single-sentence batch can.
func (b Batch) Oversized(l Limits) bool {
	return l.MaxTokens > 0 && b.Tokens > l.MaxTokens
}

// Split packs items greedily in one pass: the next sentence joins the open
// batch if both ceilings still hold, otherwise the batch is closed and a new
// one starts with it. A sentence that alone exceeds MaxTokens gets its own
// batch and is never dropped. Concatenating the batches yields items.
func Split(items []string, est Estimator, lim Limits) []Batch {
	if est == nil {
		est = ByteEstimator(0)
	}

	var out []Batch
	var cur Batch
	for _, s := range items {
		t := est(s)
		if len(cur.Items) > 0 && !fits(cur, t, lim) {
			out = append(out, cur)
			cur = Batch{}
		}
		cur.Items = append(cur.Items, s)
		cur.Tokens += t
	}
	if len(cur.Items) > 0 {
		out = append(out, cur)
	}
	return out
}

func fits(b Batch, tokens int, lim Limits) bool {
	if lim.MaxItems > 0 && len(b.Items)+1 > lim.MaxItems {
		return false
	}
	if lim.MaxTokens > 0 && b.Tokens+tokens > lim.MaxTokens {
		return false
	}
	return true
}
