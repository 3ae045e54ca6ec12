package service

import (
	"errors"
	"time"

	"shopadmin/internal/auth"
	"shopadmin/internal/config"
	"shopadmin/internal/metrics"
	"shopadmin/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserService 封装凭证校验、token 签发/旋转/撤销和角色变更的业务逻辑。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// UserInfo 是对外输出的用户数据，字段名与前端约定保持一致。
type UserInfo struct {
	ID        uint     `json:"id"`
	Username  string   `json:"userName"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"createdAt"`
}

func toUserInfo(u models.User) UserInfo {
	return UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     auth.RoleNamesOf(u),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register 注册新用户，默认授予 USER 角色。
func (s *UserService) Register(username, email, password, firstName, lastName string) (*UserInfo, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	var role models.Role
	if err := s.db.Where("name = ?", string(auth.RoleUser)).First(&role).Error; err != nil {
		return nil, err
	}
	user := models.User{
		Username:     username,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
		Roles:        []models.Role{role},
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	s.audit(user.ID, "register", username)
	info := toUserInfo(user)
	return &info, nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserInfo
}

// Login 校验用户名密码并签发 token 对，刷新 token 随即落库。
func (s *UserService) Login(username, password string) (*LoginResult, error) {
	var user models.User
	if err := s.db.Preload("Roles").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	at, err := auth.GenerateAccessToken(user, s.cfg)
	if err != nil {
		return nil, err
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
	if err := auth.SaveRefreshToken(s.db, user.ID, rt, exp); err != nil {
		return nil, err
	}
	s.audit(user.ID, "login", username)
	return &LoginResult{AccessToken: at, RefreshToken: rt, User: toUserInfo(user)}, nil
}

// RefreshResult 刷新后返回的新 token 对。
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// RefreshTokens 旋转刷新 token：旧 token 一次性作废，同一事务内签发并保存新
// token。行锁保证同一 token 的并发刷新只有一个成功，其余拿到 ErrInvalidToken。
func (s *UserService) RefreshTokens(oldRT string) (*RefreshResult, error) {
	var result RefreshResult
	var userID uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := auth.LockActiveRefreshToken(tx, oldRT)
		if err != nil {
			return ErrInvalidToken
		}
		if err := tx.Model(&models.RefreshToken{}).Where("id = ?", rec.ID).Update("revoked", true).Error; err != nil {
			return err
		}
		var user models.User
		if err := tx.Preload("Roles").First(&user, rec.UserID).Error; err != nil {
			return err
		}
		at, err := auth.GenerateAccessToken(user, s.cfg)
		if err != nil {
			return err
		}
		newRT, err := auth.GenerateRefreshToken()
		if err != nil {
			return err
		}
		exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
		if err := auth.SaveRefreshToken(tx, user.ID, newRT, exp); err != nil {
			return err
		}
		result.AccessToken = at
		result.RefreshToken = newRT
		userID = user.ID
		return nil
	})
	if err != nil {
		metrics.TokenRotationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.TokenRotationsTotal.WithLabelValues("success").Inc()
	s.audit(userID, "refresh", "")
	return &result, nil
}

// Logout 撤销指定的刷新 token。对已撤销 token 的二次登出必须报错而不是
// 静默成功，这样客户端的重复调用能暴露出来。
func (s *UserService) Logout(rt string) error {
	rec, err := auth.FindRefreshToken(s.db, rt)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	if rec.Revoked {
		return ErrTokenRevoked
	}
	if err := auth.RevokeRefreshToken(s.db, rt); err != nil {
		return err
	}
	s.audit(rec.UserID, "logout", "")
	return nil
}

// UpdateRole 按层级规则把目标用户的角色集合整体替换为单个新角色。
// OWNER 动不了另一个 OWNER，这里明确拒绝而不是无声放过。
func (s *UserService) UpdateRole(actor models.User, targetUsername, roleName string) error {
	newRole, ok := auth.ParseRole(roleName)
	if !ok {
		return ErrUnknownRole
	}
	var target models.User
	if err := s.db.Preload("Roles").Where("username = ?", targetUsername).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	actorRole := auth.Highest(auth.RoleNamesOf(actor))
	targetRole := auth.Highest(auth.RoleNamesOf(target))
	if !auth.CanAssign(actorRole, targetRole, newRole) {
		return ErrForbidden
	}
	var role models.Role
	if err := s.db.Where("name = ?", string(newRole)).First(&role).Error; err != nil {
		return err
	}
	if err := s.db.Model(&target).Association("Roles").Replace(&role); err != nil {
		return err
	}
	s.audit(actor.ID, "role_change", targetUsername+"->"+string(newRole))
	return nil
}

// IntrospectResult 自省接口返回当前用户信息和一个新签的访问 token。
type IntrospectResult struct {
	User     UserInfo
	NewToken string
}

// Introspect 校验 token 的签名/签发者/受众但容忍过期，任何失败都折叠成
// ErrInvalidToken，不向调用方泄露细节。
func (s *UserService) Introspect(tokenStr string) (*IntrospectResult, error) {
	claims, err := auth.ParseAccessTokenAllowExpired(tokenStr, s.cfg)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var user models.User
	if err := s.db.Preload("Roles").First(&user, claims.UserID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	at, err := auth.GenerateAccessToken(user, s.cfg)
	if err != nil {
		return nil, err
	}
	return &IntrospectResult{User: toUserInfo(user), NewToken: at}, nil
}

// ListUsers 返回全部用户。
func (s *UserService) ListUsers() ([]UserInfo, error) {
	var users []models.User
	if err := s.db.Preload("Roles").Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, toUserInfo(u))
	}
	return out, nil
}

// GetByUsername 按用户名查找单个用户。
func (s *UserService) GetByUsername(username string) (*UserInfo, error) {
	var user models.User
	if err := s.db.Preload("Roles").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	info := toUserInfo(user)
	return &info, nil
}

// audit 追加一条审计记录，写入失败只记日志不影响主流程。
func (s *UserService) audit(userID uint, action, detail string) {
	entry := models.AuditLog{ID: uuid.NewString(), UserID: userID, Action: action, Detail: detail}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("action", action).Msg("audit log write")
	}
}
