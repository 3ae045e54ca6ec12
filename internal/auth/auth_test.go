package auth

import (
	"testing"

	"shopadmin/internal/config"
	"shopadmin/internal/models"
)

func testCfg() config.Config {
	return config.Config{
		JWTSecret:             "test-secret-key",
		JWTIssuer:             "shopadmin",
		JWTAudience:           "shopadmin-web",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLDays:   7,
	}
}

func testUser() models.User {
	return models.User{
		ID:        42,
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Doe",
		Roles:     []models.Role{{ID: 1, Name: "ADMIN"}, {ID: 2, Name: "USER"}},
	}
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "password123", false},
		{"empty password", "", false},
		{"long password", "a" + string(make([]byte, 70)), false}, // bcrypt max is 72 bytes
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("HashPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && hash == "" {
				t.Error("HashPassword() returned empty hash")
			}
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "testpassword123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"correct password", hash, password, true},
		{"wrong password", hash, "wrongpassword", false},
		{"empty password", hash, "", false},
		{"invalid hash", "invalidhash", password, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	cfg := testCfg()
	user := testUser()

	token, err := GenerateAccessToken(user, cfg)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseAccessToken(token, cfg)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("UserID = %v, want %v", claims.UserID, user.ID)
	}
	if claims.Username != user.Username {
		t.Errorf("Username = %v, want %v", claims.Username, user.Username)
	}
	if claims.FirstName != user.FirstName || claims.LastName != user.LastName {
		t.Errorf("name claims = %v %v, want %v %v", claims.FirstName, claims.LastName, user.FirstName, user.LastName)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "ADMIN" || claims.Roles[1] != "USER" {
		t.Errorf("Roles = %v, want [ADMIN USER]", claims.Roles)
	}
}

func TestParseAccessToken_Rejections(t *testing.T) {
	cfg := testCfg()
	token, err := GenerateAccessToken(testUser(), cfg)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	wrongSecret := cfg
	wrongSecret.JWTSecret = "wrong-secret"
	wrongIssuer := cfg
	wrongIssuer.JWTIssuer = "someone-else"
	wrongAudience := cfg
	wrongAudience.JWTAudience = "other-app"

	tests := []struct {
		name  string
		token string
		cfg   config.Config
	}{
		{"wrong secret", token, wrongSecret},
		{"wrong issuer", token, wrongIssuer},
		{"wrong audience", token, wrongAudience},
		{"garbage token", "invalid.token.here", cfg},
		{"empty token", "", cfg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAccessToken(tt.token, tt.cfg); err == nil {
				t.Error("ParseAccessToken() should have failed")
			}
		})
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	cfg := testCfg()
	cfg.AccessTokenTTLMinutes = -1
	token, err := GenerateAccessToken(testUser(), cfg)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := ParseAccessToken(token, cfg); err == nil {
		t.Error("ParseAccessToken() should reject expired token")
	}
}

func TestParseAccessTokenAllowExpired(t *testing.T) {
	cfg := testCfg()
	cfg.AccessTokenTTLMinutes = -1
	token, err := GenerateAccessToken(testUser(), cfg)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	// 过期但签名有效的 token 在自省路径下可以通过。
	claims, err := ParseAccessTokenAllowExpired(token, cfg)
	if err != nil {
		t.Fatalf("ParseAccessTokenAllowExpired() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %v, want 42", claims.UserID)
	}

	// 签名、签发者、受众仍然照常校验。
	wrongSecret := cfg
	wrongSecret.JWTSecret = "wrong-secret"
	if _, err := ParseAccessTokenAllowExpired(token, wrongSecret); err == nil {
		t.Error("should reject wrong secret even on the relaxed path")
	}
	wrongIssuer := cfg
	wrongIssuer.JWTIssuer = "someone-else"
	if _, err := ParseAccessTokenAllowExpired(token, wrongIssuer); err == nil {
		t.Error("should reject wrong issuer even on the relaxed path")
	}
	wrongAudience := cfg
	wrongAudience.JWTAudience = "other-app"
	if _, err := ParseAccessTokenAllowExpired(token, wrongAudience); err == nil {
		t.Error("should reject wrong audience even on the relaxed path")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	token1, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	token2, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	if token1 == "" {
		t.Error("GenerateRefreshToken() returned empty token")
	}
	if token1 == token2 {
		t.Error("GenerateRefreshToken() should generate unique tokens")
	}
	// hex 编码的 32 字节随机数。
	if len(token1) != 64 {
		t.Errorf("GenerateRefreshToken() token length = %d, want 64", len(token1))
	}
}
