package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/vendpoint/core/ledger"
)

const defaultKeyName = "New API Key"

// ownKeyRequest is the body users may send for their own keys. Credits,
// expiry and limits stay under operator control.
type ownKeyRequest struct {
	Name *string `json:"name" validate:"omitempty,max=128"`
}

func (s *server) bindOwnKey(c *gin.Context) (ownKeyRequest, bool) {
	var in ownKeyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			fail(c, http.StatusBadRequest, "invalid body: "+err.Error())
			return in, false
		}
	}
	if err := validate.Struct(in); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return in, false
	}
	return in, true
}

// ownedKey loads the key named in the path when the caller owns it. Keys of
// other users are reported as missing.
func (s *server) ownedKey(c *gin.Context) (ledger.APIKey, bool) {
	k, err := s.Keys.Get(c.Request.Context(), c.Param("query"))
	if err == nil && !userFrom(c).Owns(k) {
		err = ledger.ErrKeyNotFound
	}
	if err != nil {
		s.keyError(c, err)
		return ledger.APIKey{}, false
	}
	return k, true
}

func (s *server) listOwnKeys(c *gin.Context) {
	keys, err := s.Users.ListOwned(c.Request.Context(), userFrom(c).ID)
	if err != nil {
		s.keyError(c, err)
		return
	}
	if keys == nil {
		keys = []ledger.APIKey{}
	}
	c.JSON(http.StatusOK, keys)
}

func (s *server) createOwnKey(c *gin.Context) {
	in, ok := s.bindOwnKey(c)
	if !ok {
		return
	}
	name := defaultKeyName
	if in.Name != nil {
		name = *in.Name
	}
	k, err := s.Keys.Create(c.Request.Context(), ledger.NewKey{Name: name, UserID: userFrom(c).ID})
	if err != nil {
		s.keyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, k)
}

func (s *server) updateOwnKey(c *gin.Context) {
	in, ok := s.bindOwnKey(c)
	if !ok {
		return
	}
	k, ok := s.ownedKey(c)
	if !ok {
		return
	}
	up, err := s.Keys.Update(c.Request.Context(), strconv.FormatInt(k.ID, 10), ledger.Patch{Name: in.Name})
	if err != nil {
		s.keyError(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (s *server) deleteOwnKey(c *gin.Context) {
	k, ok := s.ownedKey(c)
	if !ok {
		return
	}
	if err := s.Keys.Delete(c.Request.Context(), strconv.FormatInt(k.ID, 10)); err != nil {
		s.keyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) listUsers(c *gin.Context) {
	users, err := s.Users.ListUsers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if users == nil {
		users = []ledger.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (s *server) updateUser(c *gin.Context) {
	var p ledger.UserPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	u, err := s.Users.UpdateUser(c.Request.Context(), c.Param("id"), p)
	switch {
	case errors.Is(err, ledger.ErrUserNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, err.Error())
	default:
		c.JSON(http.StatusOK, u)
	}
}
