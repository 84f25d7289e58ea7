package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/requestlog"
	"github.com/kilianp07/vendpoint/pkg/export"
)

func (s *server) keyError(c *gin.Context, err error) {
	if errors.Is(err, ledger.ErrKeyNotFound) {
		fail(c, http.StatusNotFound, "API key not found")
		return
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, err.Error())
}

func (s *server) listKeys(c *gin.Context) {
	keys, err := s.Keys.List(c.Request.Context())
	if err != nil {
		s.keyError(c, err)
		return
	}
	if keys == nil {
		keys = []ledger.APIKey{}
	}
	c.JSON(http.StatusOK, keys)
}

func (s *server) createKey(c *gin.Context) {
	var nk ledger.NewKey
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&nk); err != nil {
			fail(c, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
	}
	k, err := s.Keys.Create(c.Request.Context(), nk)
	if err != nil {
		s.keyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, k)
}

func (s *server) getKey(c *gin.Context) {
	k, err := s.Keys.Get(c.Request.Context(), c.Param("query"))
	if err != nil {
		s.keyError(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

func (s *server) updateKey(c *gin.Context) {
	var p ledger.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if p.RateLimits != nil {
		for _, r := range *p.RateLimits {
			if err := validate.Struct(r); err != nil {
				fail(c, http.StatusBadRequest, "invalid rate limit: "+err.Error())
				return
			}
		}
	}
	k, err := s.Keys.Update(c.Request.Context(), c.Param("query"), p)
	if err != nil {
		s.keyError(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

func (s *server) deleteKey(c *gin.Context) {
	if err := s.Keys.Delete(c.Request.Context(), c.Param("query")); err != nil {
		s.keyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// logQuery builds a query from start, end (RFC3339), uid, key_hint,
// correlation_id, success and limit parameters.
func logQuery(c *gin.Context) (requestlog.Query, error) {
	var q requestlog.Query
	var err error
	if v := c.Query("start"); v != "" {
		if q.Start, err = time.Parse(time.RFC3339, v); err != nil {
			return q, err
		}
	}
	if v := c.Query("end"); v != "" {
		if q.End, err = time.Parse(time.RFC3339, v); err != nil {
			return q, err
		}
	}
	if v := c.Query("uid"); v != "" {
		uid, err := strconv.Atoi(v)
		if err != nil {
			return q, err
		}
		q.UID = &uid
	}
	if v := c.Query("success"); v != "" {
		ok, err := strconv.ParseBool(v)
		if err != nil {
			return q, err
		}
		q.Success = &ok
	}
	if v := c.Query("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, err
		}
	}
	q.KeyHint = c.Query("key_hint")
	q.CorrelationID = c.Query("correlation_id")
	return q, nil
}

func (s *server) queryLogs(c *gin.Context) {
	q, err := logQuery(c)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	recs, err := s.Logs.Query(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []requestlog.Record{}
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := export.WriteCSV(c.Writer, recs); err != nil {
			_ = c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *server) stats(c *gin.Context) {
	q, err := logQuery(c)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	recs, err := s.Logs.Query(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, requestlog.Summarize(recs))
}
