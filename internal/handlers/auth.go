package handlers

import (
	"net/http"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/user"
)

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func handleRegister(userService userService, uploads uploadSpool, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := uploads.parse(w, r)
		if err != nil {
			render.ServiceError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}

		var avatar, cover models.Optional[string]
		defer func() { uploads.cleanup(r, avatar, cover) }()

		avatar, err = uploads.spool(r, "avatar")
		if err != nil {
			render.Error(w, err, l)
			return
		}

		cover, err = uploads.spool(r, "coverImage")
		if err != nil {
			render.Error(w, err, l)
			return
		}

		created, err := userService.Register(r.Context(), user.RegisterParams{
			Username:       r.FormValue("username"),
			Email:          r.FormValue("email"),
			FullName:       r.FormValue("fullName"),
			Password:       r.FormValue("password"),
			AvatarPath:     avatar.Or(""),
			CoverImagePath: cover,
		})
		if err != nil {
			render.Error(w, err, l)
			return
		}

		render.JSON(w, http.StatusCreated, "User registered successfully", newUserView(created))
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type response struct {
		User userView `json:"user"`
		tokensResponse
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		u, pair, err := authService.Login(r.Context(), data.Username, data.Email, data.Password)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, http.StatusOK, "User logged in successfully", response{
			User:           newUserView(u),
			tokensResponse: newTokensResponse(pair),
		})
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}

		err := authService.Logout(r.Context(), u.ID)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		authService.ClearTokens(w)
		render.JSON(w, http.StatusOK, "User logged out successfully", struct{}{})
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := authService.GetRefreshString(r)

		pair, err := authService.RefreshPair(r.Context(), refresh)
		if err != nil {
			render.Error(w, err, l)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, http.StatusOK, "Access token refreshed", newTokensResponse(pair))
	})
}

func newTokensResponse(pair models.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}
}
