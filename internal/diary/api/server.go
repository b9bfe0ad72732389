package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/blueplan/diary-go/internal/diary/config"
	"github.com/blueplan/diary-go/internal/diary/events"
	"github.com/blueplan/diary-go/internal/diary/geo"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/orchestrator"
	"github.com/blueplan/diary-go/internal/diary/playlist"
	"github.com/blueplan/diary-go/internal/diary/session"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps 服务依赖，Spotify 与 Redis 可以为空
type Deps struct {
	Config       *config.Config
	Logger       *logx.Logger
	Store        *session.Store
	Orchestrator *orchestrator.Orchestrator
	Hub          *events.Hub
	// Generator backs the stateless /generate-story route.
	Generator story.Generator
	// Tracks backs /spotify-playlist.
	Tracks  playlist.Source
	Spotify *playlist.Spotify
	Redis   *redis.Client
}

type Server struct {
	engine  *gin.Engine
	cfg     *config.Config
	logger  *logx.Logger
	store   *session.Store
	orch    *orchestrator.Orchestrator
	hub     *events.Hub
	gen     story.Generator
	tracks  playlist.Source
	spotify *playlist.Spotify
	redis   *redis.Client
	report  geo.Reporter
	limiter *IPLimiter
	srv     *http.Server
	now     func() time.Time
}

func NewServer(d Deps) *Server {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := d.Logger
	if logger == nil {
		logger = logx.GetLogger()
	}

	s := &Server{
		engine:  gin.New(),
		cfg:     d.Config,
		logger:  logger,
		store:   d.Store,
		orch:    d.Orchestrator,
		hub:     d.Hub,
		gen:     d.Generator,
		tracks:  d.Tracks,
		spotify: d.Spotify,
		redis:   d.Redis,
		report:  geo.LogReporter{Logger: logger},
		now:     time.Now,
	}
	if d.Config.Security.EnableRateLimit {
		s.limiter = NewIPLimiter(d.Config.Security.RateLimitPerMinute, d.Config.Security.RateLimitBurst)
	}

	s.engine.MaxMultipartMemory = d.Config.Photos.MaxUploadBytes
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestContext())
	s.engine.Use(s.requestLogging())
	s.engine.Use(corsMiddleware(d.Config.API.CORSOrigins))

	s.setupRoutes()
	return s
}

// Handler exposes the router; tests drive it through httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	r := s.engine
	r.GET("/health", s.handleHealth)

	// 与浏览器客户端兼容的接口
	r.POST("/location", s.handleLocation)
	r.GET("/spotify-playlist", s.handlePlaylist)
	r.POST("/generate-story", s.rateLimit(), s.handleGenerateStory)
	r.GET("/auth/spotify", s.handleSpotifyAuth)
	r.GET("/auth/spotify/callback", s.handleSpotifyCallback)

	r.POST("/api/sessions", s.handleCreateSession)
	sg := r.Group("/api/sessions/:id", s.loadSession())
	{
		sg.POST("/location", s.handleSessionLocation)
		sg.POST("/playlist", s.handleSessionPlaylist)
		sg.POST("/photos", s.handleSessionPhotos)
		sg.PUT("/idea", s.handleSessionIdea)
		sg.POST("/story", s.rateLimit(), s.handleSessionStory)
		sg.POST("/story/save", s.handleSessionSave)
		sg.GET("/stories", s.handleSessionStories)
		sg.GET("/snapshot", s.handleSessionSnapshot)
		sg.GET("/events", s.handleSessionEvents)
		sg.DELETE("", s.handleDeleteSession)
	}
}

// PruneLimiters 清理已回满的限流桶，由会话清理的定时器调用
func (s *Server) PruneLimiters() int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.Prune(s.now())
}

func (s *Server) Start() error {
	addr := s.cfg.API.Host + ":" + strconv.Itoa(s.cfg.API.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info(context.TODO(), "http.server.start", logx.KV("addr", addr))
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
