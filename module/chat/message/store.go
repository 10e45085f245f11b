package message

import (
	"context"
	"time"

	chatmodel "Chatty/module/chat/model"
	"Chatty/tools/errs"
	"Chatty/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	MsgColl *mongo.Collection // messages
}

func NewStore(db *mongo.Database) *Store {
	return &Store{MsgColl: db.Collection(chatmodel.MessageTableName)}
}

// CreateParams 发消息入参。Text / ImageURL 二选一，由上层校验。
type CreateParams struct {
	SenderID   string
	ReceiverID string
	Text       string
	ImageURL   string
}

func (s *Store) Create(ctx context.Context, in CreateParams) (*chatmodel.Message, error) {
	m := &chatmodel.Message{
		MsgID:      ids.GenerateString(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       in.Text,
		ImageURL:   in.ImageURL,
		Seen:       false,
		CreateTime: time.Now(),
	}
	if !m.HasContent() {
		return nil, errs.ErrEmptyMessage.WrapMsg("create message", "sender", in.SenderID)
	}
	if _, err := s.MsgColl.InsertOne(ctx, m); err != nil {
		return nil, errs.WrapMsg(err, "insert message", "sender", in.SenderID, "receiver", in.ReceiverID)
	}
	return m, nil
}

// ListConversation 双向取会话消息，按创建时间升序。
func (s *Store) ListConversation(ctx context.Context, a, b string) ([]*chatmodel.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "create_time", Value: 1}})
	cur, err := s.MsgColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer cur.Close(ctx)

	var out []*chatmodel.Message
	for cur.Next(ctx) {
		var m chatmodel.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errs.Wrap(err)
		}
		out = append(out, &m)
	}
	return out, errs.Wrap(cur.Err())
}

// MarkSeen 将 peer→viewer 的全部未读置为已读，返回更新条数。
// seen 只允许 false→true，不会回退。
func (s *Store) MarkSeen(ctx context.Context, viewerID, peerID string) (int64, error) {
	res, err := s.MsgColl.UpdateMany(ctx,
		bson.M{"sender_id": peerID, "receiver_id": viewerID, "seen": false},
		bson.M{"$set": bson.M{"seen": true}},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "mark seen", "viewer", viewerID, "peer", peerID)
	}
	return res.ModifiedCount, nil
}

// MarkSeenOne 单条置已读（接收方正盯着会话时的 auto-seen 路径）。
func (s *Store) MarkSeenOne(ctx context.Context, msgID string) error {
	_, err := s.MsgColl.UpdateOne(ctx,
		bson.M{"msg_id": msgID, "seen": false},
		bson.M{"$set": bson.M{"seen": true}},
	)
	return errs.WrapMsg(err, "mark seen one", "msgID", msgID)
}

// CountUnseen peer→viewer 未读条数，未读计数对账用的事实来源。
func (s *Store) CountUnseen(ctx context.Context, viewerID, peerID string) (int64, error) {
	n, err := s.MsgColl.CountDocuments(ctx,
		bson.M{"sender_id": peerID, "receiver_id": viewerID, "seen": false})
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}
