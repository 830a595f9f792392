package auth

import "testing"

// ─── JWT tokens (per-request hot path) ──────────────────────────────

func BenchmarkGenerateAccessToken(b *testing.B) {
	opts := TokenOptions{Secret: "benchmark-secret-key-32-bytes-xx"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GenerateAccessToken("usr-bench", "", opts) //nolint:errcheck // benchmark
	}
}

func BenchmarkParseToken(b *testing.B) {
	opts := TokenOptions{Secret: "benchmark-secret-key-32-bytes-xx", Audience: "readings-api"}

	token, err := GenerateAccessToken("usr-bench", "", opts)
	if err != nil {
		b.Fatalf("GenerateAccessToken: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseToken(token, opts) //nolint:errcheck // benchmark
	}
}
