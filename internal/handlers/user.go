package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

// User set by auth middleware. Writes 500 if it is missing
func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
	return u, ok
}

// Parse uuid path value. Writes 400 if it is not valid
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		render.ServiceError(w, "Invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func handleCurrentUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		render.JSON(w, http.StatusOK, "Current user fetched successfully", newUserView(u))
	})
}

func handleChangePassword(userService userService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"notblank"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = userService.ChangePassword(r.Context(), u.ID, data.OldPassword, data.NewPassword)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "Password changed successfully", struct{}{})
	})
}

func handleUpdateAccount(userService userService, l logger.Logger) http.Handler {
	type request struct {
		FullName string `json:"fullName" validate:"notblank"`
		Email    string `json:"email" validate:"notblank,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		updated, err := userService.UpdateAccount(r.Context(), u.ID, data.FullName, data.Email)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "Account details updated successfully", newUserView(updated))
	})
}

// Shared flow of avatar and cover image updates
func handleUpdateMedia(
	uploads uploadSpool,
	l logger.Logger,
	field string,
	missing error,
	message string,
	update func(ctx context.Context, userID uuid.UUID, localPath string) (models.User, error),
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}

		err := uploads.parse(w, r)
		if err != nil {
			render.ServiceError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}

		file, err := uploads.spool(r, field)
		defer func() { uploads.cleanup(r, file) }()
		if err != nil {
			render.Error(w, err, l)
			return
		}

		path, ok := file.Get()
		if !ok {
			render.Error(w, missing, l)
			return
		}

		updated, err := update(r.Context(), u.ID, path)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, message, newUserView(updated))
	})
}

func handleUpdateAvatar(userService userService, uploads uploadSpool, l logger.Logger) http.Handler {
	return handleUpdateMedia(uploads, l, "avatar", apperrors.ErrAvatarRequired, "Avatar image updated successfully", userService.UpdateAvatar)
}

func handleUpdateCoverImage(userService userService, uploads uploadSpool, l logger.Logger) http.Handler {
	return handleUpdateMedia(uploads, l, "coverImage", apperrors.ErrCoverRequired, "Cover image updated successfully", userService.UpdateCoverImage)
}

func handleChannelProfile(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}

		channel, err := userService.GetChannelProfile(r.Context(), r.PathValue("username"), u.ID)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "User channel fetched successfully", newChannelView(channel))
	})
}

func handleSubscribe(userService userService, l logger.Logger) http.Handler {
	type response struct {
		ChannelID    uuid.UUID `json:"channelId"`
		SubscriberID uuid.UUID `json:"subscriberId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		channelID, ok := pathID(w, r, "channelID")
		if !ok {
			return
		}

		sub, err := userService.Subscribe(r.Context(), u.ID, channelID)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "Subscribed successfully", response{
			ChannelID:    sub.ChannelID,
			SubscriberID: sub.SubscriberID,
		})
	})
}

func handleUnsubscribe(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		channelID, ok := pathID(w, r, "channelID")
		if !ok {
			return
		}

		err := userService.Unsubscribe(r.Context(), u.ID, channelID)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "Unsubscribed successfully", struct{}{})
	})
}

func handleWatchHistory(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}

		history, err := userService.GetWatchHistory(r.Context(), u.ID)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "Watch history fetched successfully", newWatchHistoryView(history))
	})
}

func handleAddToWatchHistory(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		videoID, ok := pathID(w, r, "videoID")
		if !ok {
			return
		}

		err := userService.AddToWatchHistory(r.Context(), u.ID, videoID)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusOK, "Video added to watch history", struct{}{})
	})
}
