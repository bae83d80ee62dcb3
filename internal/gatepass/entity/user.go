package entity

import "time"

// User 系统用户
type User struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Username string `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Password string `json:"-" gorm:"size:100;not null"` // bcrypt哈希
	Role     string `json:"role" gorm:"size:20;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// 用户角色
const (
	RoleUser     = "user"
	RoleStore    = "store"
	RoleAdmin    = "admin"
	RoleSecurity = "security"
)

// Department 部门
type Department struct {
	ID   int    `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null"`
	Code string `json:"code" gorm:"size:20;uniqueIndex;not null"`
}

func (Department) TableName() string {
	return "departments"
}
