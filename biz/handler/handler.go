package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/hildam/harvey-go/biz/chat"
	"github.com/hildam/harvey-go/entity/model"
)

// 上游应用完成认证后通过请求头传入操作者
const (
	HeaderUserID      = "X-User-ID"
	HeaderOrgID       = "X-Org-ID"
	HeaderUsername    = "X-Username"
	HeaderDisplayName = "X-Display-Name"
	HeaderEmail       = "X-User-Email"
)

const maxHistoryLimit = 200

// Service 对话服务
type Service interface {
	Reply(ctx context.Context, text string, actor *model.Actor, conversationID string) (*model.TurnResult, error)
	History(ctx context.Context, actor *model.Actor, conversationID string, limit int) ([]model.HistoryEntry, error)
}

// Handler HTTP 对话接口
type Handler struct {
	svc Service
}

// New 创建 HTTP 处理器
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register 注册路由
func (h *Handler) Register(r route.IRouter) {
	api := r.Group("/api")
	api.POST("/chat", h.Chat)
	api.GET("/conversations/:id/history", h.History)
	r.GET("/healthz", func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, "ok")
	})
}

// Chat 处理一条用户消息
func (h *Handler) Chat(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "missing actor headers"})
		return
	}

	var req model.ChatReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "message is required"})
		return
	}

	res, err := h.svc.Reply(ctx, req.Message, actor, req.ConversationID)
	if err != nil {
		slog.Error("Chat failed, user = %s, conversation = %s, err = %v", actor.UserID, req.ConversationID, err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}
	c.JSON(consts.StatusOK, &model.ChatResp{
		Response:       res.Response,
		ConversationID: res.ConversationID,
		Title:          res.Title,
	})
}

// History 读取会话转录
func (h *Handler) History(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "missing actor headers"})
		return
	}

	id := c.Param("id")
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.svc.History(ctx, actor, id, limit)
	if errors.Is(err, chat.ErrNotFound) {
		c.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("History failed, user = %s, conversation = %s, err = %v", actor.UserID, id, err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	c.JSON(consts.StatusOK, utils.H{"conversation_id": id, "messages": entries})
}

func actorFrom(c *app.RequestContext) (*model.Actor, bool) {
	a := &model.Actor{
		UserID:      strings.TrimSpace(string(c.GetHeader(HeaderUserID))),
		OrgID:       strings.TrimSpace(string(c.GetHeader(HeaderOrgID))),
		Username:    strings.TrimSpace(string(c.GetHeader(HeaderUsername))),
		DisplayName: strings.TrimSpace(string(c.GetHeader(HeaderDisplayName))),
		Email:       strings.TrimSpace(string(c.GetHeader(HeaderEmail))),
	}
	if a.UserID == "" || a.OrgID == "" {
		return nil, false
	}
	return a, true
}
