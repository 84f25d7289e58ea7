package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/vendpoint/core/logger"
)

type promptRequest struct {
	Roles    []string `json:"roles" binding:"required"`
	Messages []string `json:"messages" binding:"required"`
}

type promptResponse struct {
	Completion    string `json:"completion"`
	IsCompletion  bool   `json:"is_completion"`
	DestHotkey    string `json:"dest_hotkey"`
	ReturnMessage string `json:"return_message,omitempty"`
}

// NewHandler serves the fleet: POST /responders/:uid/prompting answers a
// prompt and GET /ranking lists the candidates.
func NewHandler(fleet []SimulatedResponder, log logger.Logger) http.Handler {
	byUID := make(map[int]SimulatedResponder, len(fleet))
	for _, r := range fleet {
		byUID[r.UID] = r
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ranking", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"candidates": Ranking(fleet)})
	})
	r.POST("/responders/:uid/prompting", func(c *gin.Context) {
		uid, err := strconv.Atoi(c.Param("uid"))
		if err != nil {
			c.String(http.StatusBadRequest, "invalid uid")
			return
		}
		sim, ok := byUID[uid]
		if !ok {
			c.String(http.StatusNotFound, "unknown uid %d", uid)
			return
		}
		var req promptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Roles) != len(req.Messages) {
			c.String(http.StatusBadRequest, "roles and messages differ in length")
			return
		}
		if !sim.Behaviour.Wait(c.Request.Context()) {
			return
		}
		verdict := sim.Behaviour.Decide()
		log.Debugw("prompt served", map[string]any{"uid": uid, "verdict": int(verdict), "messages": len(req.Messages)})
		switch verdict {
		case Fail:
			c.String(http.StatusServiceUnavailable, "simulated failure")
		case Reject:
			c.JSON(http.StatusOK, promptResponse{DestHotkey: sim.Hotkey, ReturnMessage: "simulated rejection"})
		default:
			c.JSON(http.StatusOK, promptResponse{Completion: complete(sim, req), IsCompletion: true, DestHotkey: sim.Hotkey})
		}
	})
	return r
}

// complete echoes the last message unless the responder has a fixed reply.
func complete(sim SimulatedResponder, req promptRequest) string {
	if sim.Reply != "" {
		return sim.Reply
	}
	last := ""
	if n := len(req.Messages); n > 0 {
		last = strings.TrimSpace(req.Messages[n-1])
	}
	return fmt.Sprintf("[%s] %s", sim.Hotkey, last)
}
