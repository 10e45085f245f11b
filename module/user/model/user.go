package model

import (
	"net/url"
	"time"

	mgo "Chatty/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

const UserTableName = "users"

// User 用户主档。密码只存 bcrypt hash，任何出参都不得携带。
type User struct {
	UserID   string `bson:"user_id" json:"_id"` // 全局唯一、不可变（雪花ID字符串）
	Email    string `bson:"email" json:"email"` // 登录名，唯一索引
	FullName string `bson:"full_name" json:"fullName"`
	Password string `bson:"password" json:"-"`                          // bcrypt hash
	FaceURL  string `bson:"face_url,omitempty" json:"profilePic"`       // 头像URL，空则走 AvatarURL 兜底
	Bio      string `bson:"bio,omitempty" json:"bio,omitempty"`         // 简介（可选）

	CreateTime time.Time `bson:"create_time" json:"createdAt"`
	UpdateTime time.Time `bson:"update_time" json:"updatedAt"` // 任何字段变化都刷新
}

func (*User) TableName() string { return UserTableName }

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.TableName())
}

// AvatarURL 头像兜底：无自定义头像时用 ui-avatars 按名字生成。
func (u *User) AvatarURL() string {
	if u.FaceURL != "" {
		return u.FaceURL
	}
	name := u.FullName
	if name == "" {
		name = u.Email
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) +
		"&background=6366f1&color=ffffff&size=256&rounded=true&format=svg"
}
