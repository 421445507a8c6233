// SPDX-License-Identifier: MPL-2.0

package livebind

// LoadState counts nested synchronous loads. Every Enter is paired with the
// release function it returns, which callers defer so the count survives
// errors and panics.
type LoadState struct {
	depth    int
	maxDepth int
	peak     int
}

// NewLoadState creates a LoadState. A maxDepth of zero or less disables the limit.
func NewLoadState(maxDepth int) *LoadState {
	return &LoadState{maxDepth: maxDepth}
}

// Depth returns the current nesting depth.
func (s *LoadState) Depth() int {
	return s.depth
}

// Peak returns the deepest nesting observed.
func (s *LoadState) Peak() int {
	return s.peak
}

// Loading reports whether any load is in progress.
func (s *LoadState) Loading() bool {
	return s.depth > 0
}

// Enter increments the depth and returns the matching release. When the
// limit is exceeded the increment is undone and a *LoadDepthError returned.
func (s *LoadState) Enter() (release func(), err error) {
	s.depth++
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		depth := s.depth
		s.depth--
		return func() {}, &LoadDepthError{Depth: depth, Limit: s.maxDepth}
	}
	if s.depth > s.peak {
		s.peak = s.depth
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		s.depth--
	}, nil
}
