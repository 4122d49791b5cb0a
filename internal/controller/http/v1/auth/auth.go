package auth

import (
	"net/http"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/repository/postgres/user"
	"eventattendance/backend/internal/service/cardregistry"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type Controller struct {
	user   User
	tokens Tokens
}

func NewController(user User, tokens Tokens) *Controller {
	return &Controller{user: user, tokens: tokens}
}

func (uc Controller) SignIn(c *web.Context) error {
	var data user.SignInRequest

	err := c.BindFunc(&data, "PrintedID", "Password")
	if err != nil {
		return c.RespondError(err)
	}

	detail, err := uc.user.GetByPrintedID(c.Ctx, cardregistry.NormalizePrintedID(data.PrintedID))
	if err != nil {
		return c.RespondError(err)
	}

	if detail.Password == nil || detail.Role == nil {
		return c.RespondError(web.NewRequestError(errors.New("account cannot sign in"), http.StatusUnauthorized))
	}

	if err = bcrypt.CompareHashAndPassword([]byte(*detail.Password), []byte(data.Password)); err != nil {
		return c.RespondError(web.NewRequestError(errors.New("incorrect password"), http.StatusUnauthorized))
	}

	accessToken, err := uc.tokens.GenerateToken(detail.ID, *detail.Role, time.Now())
	if err != nil {
		return c.RespondError(errors.Wrap(err, "generating token"))
	}

	return c.Respond(map[string]interface{}{
		"status": true,
		"data": map[string]interface{}{
			"access_token": accessToken,
			"user_id":      detail.ID,
			"role":         *detail.Role,
		},
	}, http.StatusOK)
}
