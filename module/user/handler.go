package user

import (
	"errors"
	"net/http"
	"time"

	midsec "Chatty/middleware/security"
	usermodel "Chatty/module/user/model"
	userservice "Chatty/module/user/service"
	"Chatty/tools/errs"
	jwtlib "Chatty/tools/security"

	"github.com/gin-gonic/gin"
)

// Handler 账号相关 HTTP 入口。core 不在这里：这些只是普通的请求/响应。
type Handler struct {
	Users *userservice.Store
	JWT   jwtlib.Options
}

func NewHandler(users *userservice.Store, jwt jwtlib.Options) *Handler {
	return &Handler{Users: users, JWT: jwt}
}

type signupReq struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateProfileReq struct {
	ProfilePic string `json:"profilePic"`
	Bio        string `json:"bio"`
}

func userView(u *usermodel.User) gin.H {
	return gin.H{
		"_id":        u.UserID,
		"email":      u.Email,
		"fullName":   u.FullName,
		"profilePic": u.AvatarURL(),
		"createdAt":  u.CreateTime,
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "All fields are required."})
		return
	}
	u, err := h.Users.Create(c.Request.Context(), userservice.CreateParams{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		status := http.StatusBadRequest
		if !errs.ErrEmailExists.Is(err) && !errs.ErrArgs.Is(err) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"success": false, "message": errMsg(err)})
		return
	}
	h.setAuthCookie(c, u.UserID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Account Created Successfully.", "user": userView(u)})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password are required."})
		return
	}
	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials."})
		return
	}
	h.setAuthCookie(c, u.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged In Successfully.", "user": userView(u)})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("jwt", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged Out Successfully."})
}

// Check 返回当前登录用户（前端启动时探活用）。
func (h *Handler) Check(c *gin.Context) {
	u, err := h.Users.FindByID(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": userView(u)})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.ProfilePic == "" && req.Bio == "") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Nothing to update."})
		return
	}
	u, err := h.Users.UpdateProfile(c.Request.Context(), midsec.UserID(c), req.ProfilePic, req.Bio)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile Updated Successfully.", "user": userView(u)})
}

func (h *Handler) setAuthCookie(c *gin.Context, userID string) {
	token, _, err := jwtlib.Generate(h.JWT, userID)
	if err != nil {
		return
	}
	maxAge := int((7 * 24 * time.Hour).Seconds())
	if h.JWT.TTL > 0 {
		maxAge = int(h.JWT.TTL.Seconds())
	}
	c.SetCookie("jwt", token, maxAge, "/", "", false, true)
}

func errMsg(err error) string {
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		return ce.Msg
	}
	return "Internal server error."
}
