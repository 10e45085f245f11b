package service

import (
	"context"
	"time"

	usermodel "Chatty/module/user/model"
	"Chatty/tools/errs"
	"Chatty/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// Store 用户存取。collection 注入以便换库/单测。
type Store struct {
	Coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{Coll: db.Collection(usermodel.UserTableName)}
}

// CreateParams 注册入参
type CreateParams struct {
	Email    string
	FullName string
	Password string // 明文，内部转 bcrypt
}

func (s *Store) Create(ctx context.Context, in CreateParams) (*usermodel.User, error) {
	if in.Email == "" || in.FullName == "" {
		return nil, errs.ErrArgs.WrapMsg("email/fullName required")
	}
	if len(in.Password) < 6 {
		return nil, errs.ErrArgs.WrapMsg("password must be at least 6 characters")
	}

	if _, err := s.FindByEmail(ctx, in.Email); err == nil {
		return nil, errs.ErrEmailExists.WrapMsg("signup", "email", in.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	now := time.Now()
	u := &usermodel.User{
		UserID:     ids.GenerateString(),
		Email:      in.Email,
		FullName:   in.FullName,
		Password:   string(hash),
		CreateTime: now,
		UpdateTime: now,
	}
	if _, err := s.Coll.InsertOne(ctx, u); err != nil {
		return nil, errs.WrapMsg(err, "insert user", "email", in.Email)
	}
	return u, nil
}

// Authenticate 校验邮箱+密码，成功返回用户。
func (s *Store) Authenticate(ctx context.Context, email, password string) (*usermodel.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, errs.ErrBadCredentials.WrapMsg("authenticate", "email", email)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, errs.ErrBadCredentials.WrapMsg("authenticate", "email", email)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	var u usermodel.User
	err := s.Coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindByID(ctx context.Context, userID string) (*usermodel.User, error) {
	var u usermodel.User
	err := s.Coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&u)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrUserNotFound.WrapMsg("find user", "userID", userID)
		}
		return nil, errs.Wrap(err)
	}
	return &u, nil
}

// UpdateProfile 目前只允许改头像和简介。
func (s *Store) UpdateProfile(ctx context.Context, userID, faceURL, bio string) (*usermodel.User, error) {
	set := bson.M{"update_time": time.Now()}
	if faceURL != "" {
		set["face_url"] = faceURL
	}
	if bio != "" {
		set["bio"] = bio
	}
	after := options.After
	var u usermodel.User
	err := s.Coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&u)
	if err != nil {
		return nil, errs.WrapMsg(err, "update profile", "userID", userID)
	}
	return &u, nil
}

// ListOthers 侧边栏：除自己外的全部用户。
func (s *Store) ListOthers(ctx context.Context, selfID string) ([]*usermodel.User, error) {
	cur, err := s.Coll.Find(ctx, bson.M{"user_id": bson.M{"$ne": selfID}})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer cur.Close(ctx)

	var out []*usermodel.User
	for cur.Next(ctx) {
		var u usermodel.User
		if err := cur.Decode(&u); err != nil {
			return nil, errs.Wrap(err)
		}
		out = append(out, &u)
	}
	return out, errs.Wrap(cur.Err())
}
