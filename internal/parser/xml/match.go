package xmlparser

// matcher finds a fixed byte sequence in a stream fed one byte at a time. It
// keeps Knuth-Morris-Pratt state, so a partial match that fails part way
// falls back to the longest prefix that is still a candidate instead of
// restarting, and nothing needs to be re-read.
type matcher struct {
	pat  []byte
	fail []int // fail[i]: length of the longest proper border of pat[:i+1]
	n    int   // bytes of pat matched so far
}

func newMatcher(pat []byte) matcher {
	fail := make([]int, len(pat))
	k := 0
	for i := 1; i < len(pat); i++ {
		for k > 0 && pat[i] != pat[k] {
			k = fail[k-1]
		}
		if pat[i] == pat[k] {
			k++
		}
		fail[i] = k
	}
	return matcher{pat: pat, fail: fail}
}

// step consumes b and reports whether it completed a match.
func (m *matcher) step(b byte) bool {
	for m.n > 0 && b != m.pat[m.n] {
		m.n = m.fail[m.n-1]
	}
	if b == m.pat[m.n] {
		m.n++
	}
	if m.n == len(m.pat) {
		m.n = m.fail[m.n-1]
		return true
	}
	return false
}

// progress is the number of pattern bytes currently matched.
func (m *matcher) progress() int { return m.n }

func (m *matcher) reset() { m.n = 0 }
