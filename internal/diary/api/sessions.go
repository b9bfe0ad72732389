package api

import (
	"io"
	"mime/multipart"
	"net/http"

	contextx "github.com/blueplan/diary-go/internal/diary/context"
	"github.com/blueplan/diary-go/internal/diary/geo"
	"github.com/blueplan/diary-go/internal/diary/photos"
	"github.com/blueplan/diary-go/internal/diary/session"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/gin-gonic/gin"
)

const sessionKey = "diary_session"

// loadSession 解析路径中的会话并写入 context
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.store.Get(c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(contextx.WithSessionID(c.Request.Context(), sess.ID))
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.store.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sess := sessionFrom(c)
	s.store.Delete(sess.ID)
	s.orch.Forget(c.Request.Context(), sess.ID)
	c.Status(http.StatusNoContent)
}

// locationRequest 设备定位结果；ErrorCode 非零表示设备侧定位失败
type locationRequest struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ErrorCode     int     `json:"error_code,omitempty"`
	ConfirmedName string  `json:"confirmed_name,omitempty"`
}

func (s *Server) handleSessionLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid location payload")
		return
	}
	var loc geo.Locator = geo.StaticLocator{Coords: types.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}}
	if req.ErrorCode != 0 {
		loc = geo.FailingLocatorFromCode(req.ErrorCode)
	}

	res, err := s.orch.RequestLocation(c.Request.Context(), sessionFrom(c), loc, geo.FixedConfirmer{Value: req.ConfirmedName})
	if err != nil {
		s.writeError(c, err)
		return
	}
	body := gin.H{
		"status":        res.Status,
		"report_status": res.ReportStatus,
		"location":      res.Location,
	}
	if res.GeocodeErr != nil {
		body["warning"] = "Could not look up a place name, using coordinates."
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleSessionPlaylist(c *gin.Context) {
	res, err := s.orch.FetchPlaylist(c.Request.Context(), sessionFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    res.Status,
		"tracks":    res.Tracks,
		"no_tracks": res.NoTracks,
	})
}

func (s *Server) handleSessionPhotos(c *gin.Context) {
	if limit := s.cfg.API.MaxRequestSize; limit > 0 {
		// 整个表单的上限，单文件上限由 Ingestor 检查
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "invalid multipart form")
		return
	}
	headers := form.File["photos"]
	if len(headers) == 0 {
		badRequest(c, "no photos selected")
		return
	}

	files := make([]photos.File, len(headers))
	for i, fh := range headers {
		files[i] = photos.File{Name: fh.Filename, Open: opener(fh)}
	}
	recs := s.orch.UploadPhotos(c.Request.Context(), sessionFrom(c), files)

	out := make([]gin.H, len(recs))
	for i, r := range recs {
		out[i] = gin.H{"file_name": r.FileName, "tags": r.Tags}
	}
	c.JSON(http.StatusOK, gin.H{"status": photos.StatusUploaded, "photos": out})
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}

func (s *Server) handleSessionIdea(c *gin.Context) {
	var req struct {
		Idea string `json:"idea"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid idea payload")
		return
	}
	s.orch.SetIdea(sessionFrom(c), req.Idea)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSessionStory(c *gin.Context) {
	res, err := s.orch.Generate(c.Request.Context(), sessionFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": res.Text, "html": story.RenderHTML(res.Text)})
}

func (s *Server) handleSessionSave(c *gin.Context) {
	saved, err := s.orch.Save(c.Request.Context(), sessionFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": story.StatusSaved, "saved": saved})
}

func (s *Server) handleSessionStories(c *gin.Context) {
	list, err := s.orch.Stories(c.Request.Context(), sessionFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": list})
}

func (s *Server) handleSessionSnapshot(c *gin.Context) {
	snap, err := sessionFrom(c).Snapshot(s.now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	// encoded images stay server side
	for i := range snap.Photos {
		snap.Photos[i].EncodedImage = ""
	}
	c.JSON(http.StatusOK, snap)
}
