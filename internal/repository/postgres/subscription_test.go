package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/testutil"
)

func Test_SubscriptionRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("subscribe is idempotent", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			users := UserRepo{DB: tx}
			r := SubscriptionRepo{DB: tx}
			viewer := testutil.CreateUser(t, &users, "viewer")
			channel := testutil.CreateUser(t, &users, "channel")

			first, err := r.Subscribe(t.Context(), viewer.ID, channel.ID)
			require.NoError(t, err)
			second, err := r.Subscribe(t.Context(), viewer.ID, channel.ID)
			require.NoError(t, err)

			assert.Equal(t, first.ID, second.ID, "existing subscription should be returned")
			assert.Equal(t, viewer.ID, first.SubscriberID)
			assert.Equal(t, channel.ID, first.ChannelID)
		})
	})

	t.Run("subscribe to unknown channel", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			viewer := testutil.CreateUser(t, &UserRepo{DB: tx}, "viewer")
			r := SubscriptionRepo{DB: tx}

			_, err := r.Subscribe(t.Context(), viewer.ID, uuid.New())

			require.ErrorIs(t, err, apperrors.ErrChannelNotFound)
		})
	})

	t.Run("get channel counters", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			users := UserRepo{DB: tx}
			r := SubscriptionRepo{DB: tx}
			channel := testutil.CreateUser(t, &users, "channel")
			alice := testutil.CreateUser(t, &users, "alice")
			bob := testutil.CreateUser(t, &users, "bob")
			outsider := testutil.CreateUser(t, &users, "outsider")

			for _, s := range [][2]uuid.UUID{
				{alice.ID, channel.ID},
				{bob.ID, channel.ID},
				{channel.ID, alice.ID},
			} {
				_, err := r.Subscribe(t.Context(), s[0], s[1])
				require.NoError(t, err)
			}

			got, err := r.GetChannel(t.Context(), "channel", alice.ID)
			require.NoError(t, err)

			assert.Equal(t, channel.ID, got.ID)
			assert.Equal(t, "channel", got.Username)
			assert.Equal(t, channel.FullName, got.FullName)
			assert.Equal(t, channel.Avatar.URL, got.Avatar.URL)
			assert.Equal(t, models.None[models.Media](), got.CoverImage)
			assert.EqualValues(t, 2, got.SubscribersCount)
			assert.EqualValues(t, 1, got.ChannelsSubscribedToCount)
			assert.True(t, got.IsSubscribed, "alice is subscribed")

			got, err = r.GetChannel(t.Context(), "channel", outsider.ID)
			require.NoError(t, err)
			assert.False(t, got.IsSubscribed, "outsider is not subscribed")
		})
	})

	t.Run("unsubscribe", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			users := UserRepo{DB: tx}
			r := SubscriptionRepo{DB: tx}
			viewer := testutil.CreateUser(t, &users, "viewer")
			channel := testutil.CreateUser(t, &users, "channel")
			_, err := r.Subscribe(t.Context(), viewer.ID, channel.ID)
			require.NoError(t, err)

			require.NoError(t, r.Unsubscribe(t.Context(), viewer.ID, channel.ID))
			require.NoError(t, r.Unsubscribe(t.Context(), viewer.ID, channel.ID), "unsubscribe twice is ok")

			got, err := r.GetChannel(t.Context(), "channel", viewer.ID)
			require.NoError(t, err)
			assert.Zero(t, got.SubscribersCount)
			assert.False(t, got.IsSubscribed)
		})
	})

	t.Run("get channel not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := SubscriptionRepo{DB: tx}

			_, err := r.GetChannel(t.Context(), "nobody", uuid.Nil)

			require.ErrorIs(t, err, apperrors.ErrChannelNotFound)
		})
	})
}
