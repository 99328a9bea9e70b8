package user

import "time"

// Rows of the managed backend. Only the postgres adapter and tests touch these.

type User struct {
	ID        int64     `gorm:"primaryKey"`
	Username  string    `gorm:"column:username;uniqueIndex;not null"`
	Password  string    `gorm:"column:password;not null"`
	AuthID    string    `gorm:"column:auth_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }

type Permission struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"column:name;uniqueIndex;not null"`
}

func (Permission) TableName() string { return "permissions" }

type UserPermission struct {
	UserID         int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Username       string `gorm:"column:username;not null"`
	PermissionType string `gorm:"column:permission_type;not null"`
}

func (UserPermission) TableName() string { return "user_permissions" }

type AuthIdentity struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AuthIdentity) TableName() string { return "auth_identities" }

type Log struct {
	ID           int64     `gorm:"primaryKey"`
	UserID       int64     `gorm:"column:user_id;index"`
	Action       string    `gorm:"column:action;not null"`
	Timestamp    time.Time `gorm:"column:timestamp;not null"`
	CustomFields string    `gorm:"column:custom_fields"`
}

func (Log) TableName() string { return "logs" }
