package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Public profile of the user as seen by viewer
type Channel struct {
	ID                        uuid.UUID
	Username                  string
	FullName                  string
	Email                     string
	Avatar                    Media
	CoverImage                Optional[Media]
	SubscribersCount          int64
	ChannelsSubscribedToCount int64
	IsSubscribed              bool
}

type Subscription struct {
	ID           uuid.UUID
	SubscriberID uuid.UUID
	ChannelID    uuid.UUID
	CreatedAt    time.Time
}

type Video struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Duration     decimal.Decimal // seconds
	Views        int64
	IsPublished  bool
	CreatedAt    time.Time
}

// Owner fields embedded into the watch history entry
type VideoOwner struct {
	ID       uuid.UUID
	Username string
	FullName string
	Avatar   Media
}

type WatchedVideo struct {
	Video
	Owner     VideoOwner
	WatchedAt time.Time
}

// Media object waiting to be removed from the media host
type TrashedMedia struct {
	PublicID  string
	CreatedAt time.Time
	Attempts  int
}
