package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 是登录后台的账号。StrideLog 按单管理员部署，没有对外的注册入口。
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}

// CheckPassword 校验明文密码与存储的 bcrypt 哈希是否匹配。
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// EnsureUser 启动引导用：用户名或密码为空、或账号已存在时直接返回。
func EnsureUser(username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil
	}
	if DB == nil {
		return errors.New("database not initialized")
	}

	err := DB.Where("username = ?", username).First(&User{}).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return DB.Create(&User{Username: username, Password: string(hashed)}).Error
}
