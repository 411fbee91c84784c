package sessiongate

import (
	"context"
	"testing"
)

func BenchmarkAuthenticateMemory(b *testing.B) {
	engine, _, _ := newMemoryEngine(b, benchConfig)
	access := registerAlice(b, engine).Tokens.AccessToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authenticate(context.Background(), access); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkAuthenticateRedis(b *testing.B) {
	engine, _, _ := newRedisEngine(b, benchConfig)
	access := registerAlice(b, engine).Tokens.AccessToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authenticate(context.Background(), access); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine, _, _ := newRedisEngine(b, benchConfig)
	refresh := registerAlice(b, engine).Tokens.RefreshToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := engine.Refresh(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = pair.RefreshToken
	}
}

func BenchmarkLogin(b *testing.B) {
	engine, _, _ := newRedisEngine(b, benchConfig)
	registerAlice(b, engine)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := engine.Login(context.Background(), "alice@example.com", testPassword)
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		_ = engine.Logout(context.Background(), SessionContext{UserID: res.User.ID, TokenID: res.Tokens.AccessTokenID})
	}
}

func benchConfig(c *Config) {
	c.Metrics.Enabled = false
	c.Audit.Enabled = false
}
