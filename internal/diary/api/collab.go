package api

import (
	"net/http"
	"strings"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/playlist"
	"github.com/blueplan/diary-go/internal/diary/pool"
	"github.com/blueplan/diary-go/internal/diary/prompt"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"service":  s.cfg.App.Name,
		"version":  s.cfg.App.Version,
		"sessions": s.store.Len(),
	}
	if s.redis != nil {
		body["redis"] = pool.HealthCheck(c.Request.Context(), s.redis)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleLocation(c *gin.Context) {
	var req types.Coordinates
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid location payload")
		return
	}
	status, err := s.report.Report(c.Request.Context(), req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handlePlaylist(c *gin.Context) {
	if s.tracks == nil {
		c.JSON(http.StatusInternalServerError, playlist.WireResponse{Error: "Spotify is not configured"})
		return
	}
	tracks, err := s.tracks.Tracks(c.Request.Context())
	if err != nil {
		s.logger.Error(c.Request.Context(), "Spotify Playlist Error", logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, playlist.WireResponse{Error: "Failed to fetch Spotify playlist"})
		return
	}
	if len(tracks) > playlist.PageSize {
		tracks = tracks[:playlist.PageSize]
	}
	c.JSON(http.StatusOK, playlist.WireResponse{Tracks: playlist.ToWire(tracks)})
}

// handleGenerateStory 无状态生成：prompt 非空时原样发送，否则由服务端拼装
func (s *Server) handleGenerateStory(c *gin.Context) {
	var req story.WireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid story request")
		return
	}

	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		snap := story.FromWire(req)
		snap.CapturedAt = s.now()
		if snap.Location == nil && len(snap.Tracks) == 0 && len(snap.Photos) == 0 {
			s.writeStoryError(c, types.NewError(types.KindEmptyContext, "api.generate", nil))
			return
		}
		text = prompt.Compile(snap)
	}

	out, err := s.gen.Generate(c.Request.Context(), text)
	if err != nil {
		s.writeStoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, story.WireResponse{Story: out})
}

func (s *Server) writeStoryError(c *gin.Context, err error) {
	kind := types.KindOf(err)
	if kind == "" {
		kind = types.KindRequestFailed
	}
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "故事生成失败", logx.KV("kind", kind), logx.KV("error", err))
	}
	c.AbortWithStatusJSON(status, story.WireResponse{Error: types.UserMessage(kind), Code: string(kind)})
}

func (s *Server) handleSpotifyAuth(c *gin.Context) {
	if s.spotify == nil {
		c.String(http.StatusServiceUnavailable, "Spotify is not configured")
		return
	}
	c.Redirect(http.StatusFound, s.spotify.AuthCodeURL(""))
}

func (s *Server) handleSpotifyCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "No code provided")
		return
	}
	if s.spotify == nil {
		c.String(http.StatusServiceUnavailable, "Spotify is not configured")
		return
	}
	tok, err := s.spotify.Exchange(c.Request.Context(), code)
	if err != nil {
		s.logger.Error(c.Request.Context(), "Spotify Callback Error", logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get Spotify tokens"})
		return
	}
	if tok.RefreshToken != "" {
		// 运维手动写入 SPOTIFY_REFRESH_TOKEN
		s.logger.Info(c.Request.Context(), "Spotify refresh token", logx.KV("refresh_token", tok.RefreshToken))
	}
	c.String(http.StatusOK, "Spotify authorization successful! Check console for refresh token.")
}
