package user

import (
	"context"
	"time"
)

// Role 市场角色
type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleBuyer      Role = "buyer"
	RoleInvestor   Role = "investor"
	RoleLogistics  Role = "logistics"
	RoleAgronomist Role = "agronomist"
	RoleAdmin      Role = "admin"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleInvestor, RoleLogistics, RoleAgronomist, RoleAdmin:
		return true
	}
	return false
}

// User 用户模型
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"` // 已加密密码
	Salt      string    `gorm:"size:64" json:"-"`
	Role      Role      `gorm:"size:16;index;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
