package user

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	mwsecurity "github.com/Mehdi856/Chat-Project/middleware/security"
	"github.com/Mehdi856/Chat-Project/service/chat"
	"github.com/Mehdi856/Chat-Project/service/storage"
	"github.com/Mehdi856/Chat-Project/tools/errs"
)

// Accounts is the slice of the user service the handler needs.
type Accounts interface {
	Register(ctx context.Context, email, username, password string) (*storage.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, *storage.User, error)
}

// Directory is the slice of the user store the handler needs.
type Directory interface {
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int64) ([]storage.User, error)
	UpdateAvatar(ctx context.Context, email, url string) error
}

// BlobStore stores uploaded files and returns a serving URL.
type BlobStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

// Handler exposes the account REST surface.
type Handler struct {
	svc    Accounts
	users  Directory
	blobs  BlobStore
	router *chat.Router
}

func NewHandler(svc Accounts, users Directory, blobs BlobStore, router *chat.Router) *Handler {
	return &Handler{svc: svc, users: users, blobs: blobs, router: router}
}

// Mount wires public routes on r and token-protected routes on authed.
func (h *Handler) Mount(r gin.IRouter, authed gin.IRouter) {
	r.POST("/register", h.HandleRegister)
	r.POST("/login", h.HandleLogin)
	authed.GET("/users/search", h.HandleSearch)
	authed.POST("/profile/picture", h.HandleProfilePicture)
}

type registerReq struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userView struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func viewOf(u *storage.User) userView {
	return userView{Email: u.Email, Username: u.Username, AvatarURL: u.AvatarURL}
}

func (h *Handler) HandleRegister(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		if errs.ErrRecordIsExist.Is(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
			return
		}
		if errs.ErrArgs.Is(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": viewOf(u)})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) HandleLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, exp, u, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errs.ErrPassword.Is(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expire_at": exp,
		"user":      viewOf(u),
	})
}

func (h *Handler) HandleSearch(c *gin.Context) {
	prefix := c.Query("prefix")
	if prefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prefix required"})
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	found, err := h.users.SearchByUsernamePrefix(c.Request.Context(), prefix, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	views := make([]userView, 0, len(found))
	for i := range found {
		views = append(views, viewOf(&found[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

// HandleProfilePicture stores the uploaded image and fans the new URL out to
// every other online user.
func (h *Handler) HandleProfilePicture(c *gin.Context) {
	uid := mwsecurity.UserID(c)

	file, header, err := c.Request.FormFile("picture")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "picture file required"})
		return
	}
	defer file.Close()

	if header.Size > storage.MaxBlobSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "picture too large"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxBlobSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	url, err := h.blobs.Store(c.Request.Context(), data, contentType)
	if err != nil {
		if errs.ErrBlobTooLarge.Is(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "picture too large"})
			return
		}
		if errs.ErrBlobType.Is(err) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported picture type"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store picture failed"})
		return
	}

	if err := h.users.UpdateAvatar(c.Request.Context(), uid, url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update avatar failed"})
		return
	}

	h.router.Broadcast(&chat.ProfilePictureFrame{Sender: uid, URL: url}, uid)
	c.JSON(http.StatusOK, gin.H{"url": url})
}
