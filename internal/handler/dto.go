package handler

import (
	"time"

	"github.com/iliyamo/edubot/internal/model"
	"github.com/iliyamo/edubot/internal/service"
)

// ----- DTOs -----

type userResp struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	FullName    string     `json:"full_name"`
	Department  string     `json:"department,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

func toUserResp(u model.User) userResp {
	return userResp{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		FullName:    u.FullName,
		Department:  u.Department,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
		IsActive:    u.IsActive,
	}
}

type messageResp struct {
	ID            string            `json:"id"`
	ChatSessionID string            `json:"chat_session_id"`
	Type          model.MessageType `json:"type"`
	Query         string            `json:"query"`
	ImageName     string            `json:"image_name,omitempty"`
	Response      string            `json:"response"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toMessageResp(m model.Message) messageResp {
	return messageResp{
		ID:            m.ID,
		ChatSessionID: m.SessionID,
		Type:          m.Type,
		Query:         m.Content,
		ImageName:     m.ImageName,
		Response:      m.Response,
		CreatedAt:     m.CreatedAt,
	}
}

func toMessageResps(ms []model.Message) []messageResp {
	out := make([]messageResp, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMessageResp(m))
	}
	return out
}

type sessionResp struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func toSessionResp(s model.ChatSession) sessionResp {
	return sessionResp{ID: s.ID, CreatedAt: s.CreatedAt, LastActivityAt: s.LastActivityAt}
}

func toSessionResps(ss []model.ChatSession) []sessionResp {
	out := make([]sessionResp, 0, len(ss))
	for _, s := range ss {
		out = append(out, toSessionResp(s))
	}
	return out
}

type counterResp struct {
	TotalQueries  int64  `json:"total_queries"`
	TextQueries   int64  `json:"text_queries"`
	ImageQueries  int64  `json:"image_queries"`
	LastQueryDate string `json:"last_query_date,omitempty"` // YYYY-MM-DD
}

func toCounterResp(c model.AnalyticsCounter) counterResp {
	r := counterResp{
		TotalQueries: c.TotalQueries,
		TextQueries:  c.TextQueries,
		ImageQueries: c.ImageQueries,
	}
	if c.LastQueryDate != nil {
		r.LastQueryDate = c.LastQueryDate.Format(time.DateOnly)
	}
	return r
}

type userAnalyticsResp struct {
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	FullName   string      `json:"full_name"`
	Role       model.Role  `json:"role"`
	Department string      `json:"department,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Counter    counterResp `json:"analytics"`
}

func toUserAnalyticsResps(us []model.UserAnalytics) []userAnalyticsResp {
	out := make([]userAnalyticsResp, 0, len(us))
	for _, u := range us {
		out = append(out, userAnalyticsResp{
			UserID:     u.UserID,
			Username:   u.Username,
			FullName:   u.FullName,
			Role:       u.Role,
			Department: u.Department,
			CreatedAt:  u.CreatedAt,
			Counter:    toCounterResp(u.Counter),
		})
	}
	return out
}

type dashboardResp struct {
	TotalUsers   int                 `json:"total_users"`
	TotalQueries int64               `json:"total_queries"`
	TextQueries  int64               `json:"text_queries"`
	ImageQueries int64               `json:"image_queries"`
	TopUsers     []userAnalyticsResp `json:"top_users"`
	Users        []userAnalyticsResp `json:"users"`
}

func toDashboardResp(d service.Dashboard) dashboardResp {
	return dashboardResp{
		TotalUsers:   d.TotalUsers,
		TotalQueries: d.TotalQueries,
		TextQueries:  d.TextQueries,
		ImageQueries: d.ImageQueries,
		TopUsers:     toUserAnalyticsResps(d.TopUsers),
		Users:        toUserAnalyticsResps(d.Users),
	}
}
