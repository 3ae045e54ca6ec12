package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shopadmin/internal/config"
	"shopadmin/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Claims struct {
	UserID    uint     `json:"uid"`
	Username  string   `json:"username"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// RoleNamesOf 取出用户持有的全部角色名。
func RoleNamesOf(u models.User) []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// GenerateAccessToken 为用户签发短时访问 token，角色集合全部写入 claims。
func GenerateAccessToken(u models.User, cfg config.Config) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     RoleNamesOf(u),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			Issuer:    cfg.JWTIssuer,
			Audience:  jwt.ClaimStrings{cfg.JWTAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseAccessToken 校验签名、签发者、受众和有效期。
func ParseAccessToken(tokenStr string, cfg config.Config) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.JWTIssuer),
		jwt.WithAudience(cfg.JWTAudience),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ParseAccessTokenAllowExpired 只用于 /me 自省：签名、签发者、受众照常校验，
// 但刻意放过已过期的 token，便于前端拿回用户信息并换发新 token。
func ParseAccessTokenAllowExpired(tokenStr string, cfg config.Config) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != cfg.JWTIssuer {
		return nil, ErrInvalidToken
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == cfg.JWTAudience {
			audOK = true
			break
		}
	}
	if !audOK {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func SaveRefreshToken(db *gorm.DB, userID uint, token string, expiresAt time.Time) error {
	rt := models.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt}
	return db.Create(&rt).Error
}

// LockActiveRefreshToken 在旋转事务里用 SELECT ... FOR UPDATE 锁住未撤销且未过期
// 的 token 行，保证同一 token 的并发刷新只有一个能成功。
func LockActiveRefreshToken(tx *gorm.DB, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ? AND revoked = ? AND expires_at > ?", token, false, time.Now()).
		First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func FindRefreshToken(db *gorm.DB, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := db.Where("token = ?", token).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken 把 token 置为已撤销，撤销是单向且不可逆的。
func RevokeRefreshToken(db *gorm.DB, token string) error {
	return db.Model(&models.RefreshToken{}).Where("token = ?", token).Update("revoked", true).Error
}

// BearerToken 从 Authorization 头或 access_token 查询参数取 token，
// 查询参数只为 WebSocket 握手这一条例外路径存在。
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return c.Query("access_token")
}

// AuthMiddleware 校验访问 token 并把调用者身份与角色写入请求上下文。
func AuthMiddleware(cfg config.Config, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := ParseAccessToken(tokenStr, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if err := db.Preload("Roles").First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// RequireRole 限制接口只对不低于 min 角色的用户开放，必须挂在 AuthMiddleware 之后。
func RequireRole(min Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || Highest(RoleNamesOf(user)).Rank() < min.Rank() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	if v, ok := c.Get("user"); ok {
		if u, ok2 := v.(models.User); ok2 {
			return u, true
		}
	}
	return models.User{}, false
}
