package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"bugmarket/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// dummyHash 账号不存在时用于比对的哈希，代价与真实密码相同
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("bugmarket-dummy-password"), bcrypt.DefaultCost)
	return h
})

// UserService 用户注册、认证与后台管理
type UserService struct {
	db *gorm.DB
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserInput 注册、后台新建用户参数
type UserInput struct {
	Username    string
	Phone       string
	Email       string
	Password    string
	ContactInfo string
	Intro       string
	Role        models.UserRole
}

// UserUpdate 后台编辑用户，nil 字段不修改
type UserUpdate struct {
	Username    *string
	Phone       *string
	Email       *string
	Password    *string
	ContactInfo *string
	Intro       *string
}

// UserQuery 用户列表筛选
type UserQuery struct {
	Keyword  string
	Role     *models.UserRole
	Status   *models.UserStatus
	Page     int
	PageSize int
}

// ValidateUserInput 校验用户名、手机号、密码格式
func ValidateUserInput(in *UserInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if n := utf8.RuneCountInString(in.Username); n < 2 || n > 50 {
		return BadRequest("用户名长度应为 2-50 个字符")
	}
	if !phonePattern.MatchString(in.Phone) {
		return BadRequest("手机号格式不正确")
	}
	if len(in.Password) < 6 {
		return BadRequest("密码长度不能少于 6 位")
	}
	return nil
}

// checkUnique 在未删除用户中校验用户名、手机号、邮箱唯一，excludeID 为编辑时的自身 ID。
// 登录账号可以是三者任意一个，所以跨列比较：新用户名不能等于他人的手机号或邮箱，反之亦然。
func (s *UserService) checkUnique(ctx context.Context, username, phone, email string, excludeID uint) error {
	values := make([]string, 0, 3)
	for _, v := range []string{username, phone, email} {
		if v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	var existing []models.User
	query := s.db.WithContext(ctx).Select("id", "username", "phone", "email").
		Where("username IN ? OR phone IN ? OR email IN ?", values, values, values)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Find(&existing).Error; err != nil {
		return Internal("查询用户失败", err)
	}
	for _, u := range existing {
		switch {
		case u.HasAccount(phone):
			return Conflict("手机号已被注册")
		case u.HasAccount(email):
			return Conflict("邮箱已被注册")
		case u.HasAccount(username):
			return Conflict("用户名已存在")
		}
	}
	return nil
}

// Register 注册普通用户
func (s *UserService) Register(ctx context.Context, in UserInput) (*models.User, error) {
	in.Role = models.RoleUser
	user, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, Internal("注册失败", err)
	}
	return user, nil
}

// prepare 校验参数与唯一性并生成待写入的用户
func (s *UserService) prepare(ctx context.Context, in UserInput) (*models.User, error) {
	if err := ValidateUserInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Username, in.Phone, in.Email, 0); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Internal("密码加密失败", err)
	}
	return &models.User{
		Username:    in.Username,
		Phone:       in.Phone,
		Email:       in.Email,
		Password:    string(hash),
		ContactInfo: in.ContactInfo,
		Intro:       in.Intro,
		Role:        in.Role,
		Status:      models.UserStatusNormal,
	}, nil
}

// Authenticate 账号（手机号/邮箱/用户名）+ 密码登录
func (s *UserService) Authenticate(ctx context.Context, account, password string) (*models.User, error) {
	account = strings.TrimSpace(account)
	var user models.User
	err := s.db.WithContext(ctx).
		Where("phone = ? OR email = ? OR username = ?", account, account, account).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 账号不存在时也做一次比对，响应耗时与密码错误一致
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, Unauthorized("账号或密码错误")
		}
		return nil, Internal("查询用户失败", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, Unauthorized("账号或密码错误")
	}
	if user.IsDisabled() {
		return nil, Forbidden("账号已被禁用")
	}
	return &user, nil
}

// Get 按 ID 查询未删除用户
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, dbError(err, "用户不存在", "查询用户失败")
	}
	return &user, nil
}

// ChangePassword 修改自己的密码
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return BadRequest("密码长度不能少于 6 位")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return BadRequest("原密码错误")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return Internal("密码加密失败", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", string(hash)).Error; err != nil {
		return Internal("修改密码失败", err)
	}
	return nil
}

// List 后台用户列表
func (s *UserService) List(ctx context.Context, q UserQuery) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if q.Keyword != "" {
		kw := "%" + escapeLike(q.Keyword) + "%"
		query = query.Where("(username LIKE ? OR phone LIKE ? OR email LIKE ?)", kw, kw, kw)
	}
	if q.Role != nil {
		query = query.Where("role = ?", *q.Role)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, Internal("查询用户失败", err)
	}
	var users []models.User
	if err := query.Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize).
		Find(&users).Error; err != nil {
		return nil, 0, Internal("查询用户失败", err)
	}
	return users, total, nil
}

// Create 后台新建用户，不能直接创建超级管理员
func (s *UserService) Create(ctx context.Context, in UserInput, op Operator) (*models.User, error) {
	if !in.Role.Valid() || in.Role == models.RoleSuperAdmin {
		return nil, BadRequest("只能创建普通用户或普通管理员")
	}
	user, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return Internal("创建用户失败", err)
		}
		return writeLog(tx, op, nil, models.OpUserCreate, fmt.Sprintf("创建用户: %s (id=%d)", user.Username, user.ID))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update 后台编辑用户资料
func (s *UserService) Update(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	var username, phone, email string
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if n := utf8.RuneCountInString(username); n < 2 || n > 50 {
			return nil, BadRequest("用户名长度应为 2-50 个字符")
		}
		updates["username"] = username
	}
	if in.Phone != nil {
		phone = strings.TrimSpace(*in.Phone)
		if !phonePattern.MatchString(phone) {
			return nil, BadRequest("手机号格式不正确")
		}
		updates["phone"] = phone
	}
	if in.Email != nil {
		email = strings.TrimSpace(*in.Email)
		updates["email"] = email
	}
	if in.Password != nil {
		if len(*in.Password) < 6 {
			return nil, BadRequest("密码长度不能少于 6 位")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, Internal("密码加密失败", err)
		}
		updates["password"] = string(hash)
	}
	if in.ContactInfo != nil {
		updates["contact_info"] = *in.ContactInfo
	}
	if in.Intro != nil {
		updates["intro"] = *in.Intro
	}
	if len(updates) == 0 {
		return user, nil
	}

	if username != "" || phone != "" || email != "" {
		if err := s.checkUnique(ctx, username, phone, email, id); err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, Internal("更新用户失败", err)
	}
	return s.Get(ctx, id)
}

// Delete 软删除用户，不能删除自己
func (s *UserService) Delete(ctx context.Context, id uint, op Operator) error {
	if id == op.ID {
		return BadRequest("不能删除当前登录账号")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(user).Error; err != nil {
			return Internal("删除用户失败", err)
		}
		return writeLog(tx, op, nil, models.OpUserDelete, fmt.Sprintf("删除用户: %s (id=%d, 软删除)", user.Username, user.ID))
	})
}

// AssignRole 分配角色，不能授予超级管理员
func (s *UserService) AssignRole(ctx context.Context, id uint, role models.UserRole) (*models.User, error) {
	if !role.Valid() || role == models.RoleSuperAdmin {
		return nil, BadRequest("只能分配普通用户或普通管理员角色")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleSuperAdmin {
		return nil, Forbidden("不能修改超级管理员的角色")
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, Internal("分配角色失败", err)
	}
	user.Role = role
	return user, nil
}

// UpdateStatus 启用或禁用账号，禁用时记录日志
func (s *UserService) UpdateStatus(ctx context.Context, id uint, status models.UserStatus, op Operator) (*models.User, error) {
	if !status.Valid() {
		return nil, BadRequest("状态值不合法")
	}
	if id == op.ID && status == models.UserStatusDisabled {
		return nil, BadRequest("不能禁用当前登录账号")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("status", status).Error; err != nil {
			return Internal("更新用户状态失败", err)
		}
		if status != models.UserStatusDisabled {
			return nil
		}
		return writeLog(tx, op, nil, models.OpUserDisable, fmt.Sprintf("禁用用户: %s (id=%d)", user.Username, user.ID))
	})
	if err != nil {
		return nil, err
	}
	user.Status = status
	return user, nil
}
