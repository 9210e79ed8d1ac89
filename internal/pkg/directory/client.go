package directory

import (
	"PetCare/internal/api/config"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// UserSummary 账号目录返回的用户展示信息
type UserSummary struct {
	UserID   uint64 `json:"user_id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	IsStaff  bool   `json:"is_staff"`
}

type summaryResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    *UserSummary `json:"data"`
}

// Client 账号目录服务客户端。账号体系是外部协作方，这里只做展示信息解析。
type Client interface {
	GetUserSummary(ctx context.Context, userID uint64) (*UserSummary, error)
}

type clientImpl struct {
	http *resty.Client
}

func NewClient(cfg config.DirectoryConfig) Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout == 0 {
		timeout = 3 * time.Second
	}
	return &clientImpl{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetRetryCount(1),
	}
}

// GetUserSummary 解析用户展示信息。目录不可用时降级为占位名，不阻断业务。
func (s *clientImpl) GetUserSummary(ctx context.Context, userID uint64) (*UserSummary, error) {
	var res summaryResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&res).
		Get(fmt.Sprintf("/api/user/%d/simple", userID))
	if err != nil || resp.IsError() || res.Data == nil {
		log.WarnContext(ctx, "directory lookup degraded", "user_id", userID, "err", err)
		return &UserSummary{
			UserID: userID,
			Name:   fmt.Sprintf("用户%d", userID),
		}, nil
	}
	return res.Data, nil
}
