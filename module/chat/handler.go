package chat

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mehdi856/Chat-Project/logger"
	mwsecurity "github.com/Mehdi856/Chat-Project/middleware/security"
	chatsvc "github.com/Mehdi856/Chat-Project/service/chat"
	"github.com/Mehdi856/Chat-Project/service/storage"
	"github.com/Mehdi856/Chat-Project/tools/crypto"
	"github.com/Mehdi856/Chat-Project/tools/errs"
)

// Handler exposes the conversation REST surface: history, contacts, groups.
type Handler struct {
	messages *storage.Messages
	contacts *storage.Contacts
	groups   *storage.Groups
	codec    *crypto.Codec
}

func NewHandler(messages *storage.Messages, contacts *storage.Contacts, groups *storage.Groups, codec *crypto.Codec) *Handler {
	return &Handler{messages: messages, contacts: contacts, groups: groups, codec: codec}
}

func (h *Handler) Mount(authed gin.IRouter) {
	authed.GET("/messages/:peer", h.HandleDirectHistory)
	authed.GET("/groups/:id/messages", h.HandleGroupHistory)

	authed.GET("/contacts", h.HandleListContacts)
	authed.POST("/contacts", h.HandleAddContact)
	authed.DELETE("/contacts/:peer", h.HandleRemoveContact)

	authed.POST("/groups", h.HandleCreateGroup)
	authed.GET("/groups", h.HandleListGroups)
	authed.GET("/groups/:id", h.HandleGetGroup)
	authed.POST("/groups/:id/members", h.HandleAddMember)
}

type messageView struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver,omitempty"`
	GroupID    string    `json:"group_id,omitempty"`
	Text       string    `json:"text"`
	Attachment string    `json:"attachment,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// viewOf decrypts the stored ciphertext for the response. Records that fail
// to decrypt keep an empty text rather than failing the whole page.
func (h *Handler) viewOf(rec *chatsvc.MessageRecord) messageView {
	v := messageView{
		ID:         rec.ID,
		Sender:     rec.Sender,
		Receiver:   rec.Receiver,
		GroupID:    rec.GroupID,
		Attachment: rec.Attachment,
		SentAt:     rec.SentAt,
	}
	if h.codec == nil {
		v.Text = rec.Ciphertext
		return v
	}
	text, err := h.codec.Decrypt(rec.Ciphertext)
	if err != nil {
		logger.Warnf("history: decrypt %s: %v", rec.ID, err)
		return v
	}
	v.Text = text
	return v
}

func (h *Handler) respondHistory(c *gin.Context, recs []chatsvc.MessageRecord) {
	views := make([]messageView, 0, len(recs))
	for i := range recs {
		views = append(views, h.viewOf(&recs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

func queryLimit(c *gin.Context) int64 {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	return limit
}

func (h *Handler) HandleDirectHistory(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	peer := c.Param("peer")
	recs, err := h.messages.History(c.Request.Context(), storage.HistoryFilter{
		UserA: uid,
		UserB: peer,
		Limit: queryLimit(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
		return
	}
	h.respondHistory(c, recs)
}

func (h *Handler) HandleGroupHistory(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	groupID := c.Param("id")
	if !h.isMember(c, groupID, uid) {
		return
	}
	recs, err := h.messages.History(c.Request.Context(), storage.HistoryFilter{
		GroupID: groupID,
		Limit:   queryLimit(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
		return
	}
	h.respondHistory(c, recs)
}

// isMember writes the error response itself when the check fails.
func (h *Handler) isMember(c *gin.Context, groupID, uid string) bool {
	members, err := h.groups.Members(c.Request.Context(), groupID)
	if err != nil {
		if errs.ErrRecordNotFind.Is(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "group lookup failed"})
		}
		return false
	}
	for _, m := range members {
		if m == uid {
			return true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
	return false
}

type addContactReq struct {
	Peer  string `json:"peer" binding:"required"`
	Alias string `json:"alias"`
}

func (h *Handler) HandleAddContact(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	var req addContactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Peer == uid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add yourself"})
		return
	}
	err := h.contacts.Add(c.Request.Context(), &storage.Contact{
		Owner: uid,
		Peer:  req.Peer,
		Alias: req.Alias,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add contact failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"peer": req.Peer})
}

func (h *Handler) HandleListContacts(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	list, err := h.contacts.List(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list contacts failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list})
}

func (h *Handler) HandleRemoveContact(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	if err := h.contacts.Remove(c.Request.Context(), uid, c.Param("peer")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove contact failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type createGroupReq struct {
	Name    string   `json:"name" binding:"required"`
	Members []string `json:"members"`
}

func (h *Handler) HandleCreateGroup(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	var req createGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	g, err := h.groups.Create(c.Request.Context(), req.Name, uid, req.Members)
	if err != nil {
		if errs.ErrArgs.Is(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create group failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": g})
}

func (h *Handler) HandleListGroups(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	list, err := h.groups.ListByMember(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list groups failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": list})
}

func (h *Handler) HandleGetGroup(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	groupID := c.Param("id")
	if !h.isMember(c, groupID, uid) {
		return
	}
	g, err := h.groups.Get(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "group lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": g})
}

type addMemberReq struct {
	Member string `json:"member" binding:"required"`
}

func (h *Handler) HandleAddMember(c *gin.Context) {
	uid := mwsecurity.UserID(c)
	groupID := c.Param("id")
	if !h.isMember(c, groupID, uid) {
		return
	}
	var req addMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.groups.AddMember(c.Request.Context(), groupID, req.Member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add member failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": groupID, "member": req.Member})
}
