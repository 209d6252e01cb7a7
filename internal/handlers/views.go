package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/videotube/internal/models"
)

// Account as seen by client. Password hash never leaves the server
type userView struct {
	ID         uuid.UUID               `json:"id"`
	Username   string                  `json:"username"`
	Email      string                  `json:"email"`
	FullName   string                  `json:"fullName"`
	Avatar     string                  `json:"avatar"`
	CoverImage models.Optional[string] `json:"coverImage"`
	CreatedAt  time.Time               `json:"createdAt"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

func newUserView(u models.User) userView {
	return userView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar.URL,
		CoverImage: mediaURL(u.CoverImage),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type channelView struct {
	ID                        uuid.UUID               `json:"id"`
	Username                  string                  `json:"username"`
	FullName                  string                  `json:"fullName"`
	Email                     string                  `json:"email"`
	Avatar                    string                  `json:"avatar"`
	CoverImage                models.Optional[string] `json:"coverImage"`
	SubscribersCount          int64                   `json:"subscribersCount"`
	ChannelsSubscribedToCount int64                   `json:"channelsSubscribedToCount"`
	IsSubscribed              bool                    `json:"isSubscribed"`
}

func newChannelView(c models.Channel) channelView {
	return channelView{
		ID:                        c.ID,
		Username:                  c.Username,
		FullName:                  c.FullName,
		Email:                     c.Email,
		Avatar:                    c.Avatar.URL,
		CoverImage:                mediaURL(c.CoverImage),
		SubscribersCount:          c.SubscribersCount,
		ChannelsSubscribedToCount: c.ChannelsSubscribedToCount,
		IsSubscribed:              c.IsSubscribed,
	}
}

type ownerView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"fullName"`
	Avatar   string    `json:"avatar"`
}

type watchedVideoView struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	VideoURL     string          `json:"videoFile"`
	ThumbnailURL string          `json:"thumbnail"`
	Duration     decimal.Decimal `json:"duration"`
	Views        int64           `json:"views"`
	IsPublished  bool            `json:"isPublished"`
	CreatedAt    time.Time       `json:"createdAt"`
	WatchedAt    time.Time       `json:"watchedAt"`
	Owner        ownerView       `json:"owner"`
}

func newWatchHistoryView(history []models.WatchedVideo) []watchedVideoView {
	views := make([]watchedVideoView, 0, len(history))
	for _, v := range history {
		views = append(views, watchedVideoView{
			ID:           v.ID,
			Title:        v.Title,
			Description:  v.Description,
			VideoURL:     v.VideoURL,
			ThumbnailURL: v.ThumbnailURL,
			Duration:     v.Duration,
			Views:        v.Views,
			IsPublished:  v.IsPublished,
			CreatedAt:    v.CreatedAt,
			WatchedAt:    v.WatchedAt,
			Owner: ownerView{
				ID:       v.Owner.ID,
				Username: v.Owner.Username,
				FullName: v.Owner.FullName,
				Avatar:   v.Owner.Avatar.URL,
			},
		})
	}
	return views
}

func mediaURL(m models.Optional[models.Media]) models.Optional[string] {
	if media, ok := m.Get(); ok {
		return models.Some(media.URL)
	}
	return models.None[string]()
}
