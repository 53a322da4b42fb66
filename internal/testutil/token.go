package testutil

// FixedTokenSource returns the same run token every time.
//
// Production code mints a fresh UUIDv7 per run; tests substitute this source
// so run reports and recorded history rows are stable across runs.
//
// FixedTokenSource is stateless and safe for concurrent use.
type FixedTokenSource struct {
	token string
}

// NewFixedTokenSource creates a fixed run token source. If token is empty,
// Token returns "test-run-default".
func NewFixedTokenSource(token string) *FixedTokenSource {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenSource{token: token}
}

// Token returns the fixed run token.
func (s *FixedTokenSource) Token() string {
	return s.token
}
