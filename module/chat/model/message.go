package model

import (
	"time"

	mgo "Chatty/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

const MessageTableName = "messages"

// Message 单聊消息。text / image_url 二选一（HTTP 层校验）。
// seen 只有 false→true 一个迁移，是未读计数的持久化事实来源。
type Message struct {
	MsgID      string    `bson:"msg_id" json:"_id"`       // 雪花ID字符串
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	ImageURL   string    `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Seen       bool      `bson:"seen" json:"seen"`
	CreateTime time.Time `bson:"create_time" json:"createdAt"`
}

func (*Message) TableName() string { return MessageTableName }

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.TableName())
}

// HasContent 消息必须有文本或图片之一。
func (m *Message) HasContent() bool {
	return m.Text != "" || m.ImageURL != ""
}
