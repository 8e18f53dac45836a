package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchalong/syncengine/internal/domain"
	"github.com/watchalong/syncengine/internal/engine"
	"github.com/watchalong/syncengine/internal/store"
	"github.com/watchalong/syncengine/pkg/rest"
)

type stateResponse struct {
	Identity string               `json:"identity"`
	Role     domain.Role          `json:"role"`
	IsMicOn  bool                 `json:"is_mic_on"`
	Roster   []domain.Participant `json:"roster"`
	Video    domain.PlaybackState `json:"video"`
	Music    domain.PlaybackState `json:"music"`
	Playlist domain.Playlist      `json:"playlist"`
}

func (c controller) getState(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": stateResponse{
		Identity: c.engine.Identity(),
		Role:     c.engine.Role(),
		IsMicOn:  c.engine.IsMicOn(),
		Roster:   c.engine.Roster(),
		Video:    c.engine.State(domain.SyncTypeVideo),
		Music:    c.engine.State(domain.SyncTypeMusic),
		Playlist: c.engine.Playlist(),
	}})
}

type updatePlayerStateRequest struct {
	SyncType    string  `json:"sync_type" validate:"omitempty,oneof=video music"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time" validate:"min=0"`
}

func (c controller) updatePlayerState(w http.ResponseWriter, r *http.Request) {
	var req updatePlayerStateRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	syncType := domain.SyncTypeVideo
	if req.SyncType == "music" {
		syncType = domain.SyncTypeMusic
	}

	state := c.engine.UpdatePlayerState(syncType, req.IsPlaying, req.CurrentTime)
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

type setVideoRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func (c controller) setVideo(w http.ResponseWriter, r *http.Request) {
	var req setVideoRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	state := c.engine.SetMedia(domain.SyncTypeVideo, req.URL)
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

// trackEnded is what the local player calls when the current video finishes;
// an advance only happens when this participant is host or co-host.
func (c controller) trackEnded(w http.ResponseWriter, r *http.Request) {
	playlist, advanced := c.engine.TrackEnded()
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": playlist, "advanced": advanced})
}

type setMusicVolumeRequest struct {
	Volume float64 `json:"volume" validate:"min=0,max=1"`
}

func (c controller) setMusicVolume(w http.ResponseWriter, r *http.Request) {
	var req setMusicVolumeRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	state := c.engine.SetMusicVolume(req.Volume)
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

type addVideoRequest struct {
	URL       string  `json:"url" validate:"required,url"`
	Title     string  `json:"title" validate:"max=200"`
	Type      string  `json:"type" validate:"omitempty,oneof=video music"`
	Duration  float64 `json:"duration" validate:"min=0"`
	Thumbnail string  `json:"thumbnail"`
}

func (c controller) addVideo(w http.ResponseWriter, r *http.Request) {
	var req addVideoRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	item, playlist := c.engine.AddVideo(r.Context(), &engine.AddVideoParams{
		URL:       req.URL,
		Title:     req.Title,
		Type:      req.Type,
		Duration:  req.Duration,
		Thumbnail: req.Thumbnail,
	})

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": item, "playlist": playlist})
}

func (c controller) removeVideo(w http.ResponseWriter, r *http.Request) {
	playlist, err := c.engine.RemoveVideo(chi.URLParam(r, "video-id"))
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": playlist})
}

func (c controller) selectVideo(w http.ResponseWriter, r *http.Request) {
	playlist, err := c.engine.SelectVideo(chi.URLParam(r, "video-id"))
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": playlist})
}

type moveVideoRequest struct {
	Index int `json:"index" validate:"min=0"`
}

func (c controller) moveVideo(w http.ResponseWriter, r *http.Request) {
	var req moveVideoRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	playlist, err := c.engine.MoveVideo(chi.URLParam(r, "video-id"), req.Index)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": playlist})
}

// advance is the playlist counterpart of trackEnded: same host-only advance,
// triggered by an explicit skip instead of the track finishing.
func (c controller) advance(w http.ResponseWriter, r *http.Request) {
	playlist, advanced := c.engine.TrackEnded()
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": playlist, "advanced": advanced})
}

func (c controller) toggleLoop(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.engine.ToggleLoop()})
}

func (c controller) toggleShuffle(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.engine.ToggleShuffle()})
}

type setMicRequest struct {
	On bool `json:"on"`
}

func (c controller) setMic(w http.ResponseWriter, r *http.Request) {
	var req setMicRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.engine.SetMicOn(r.Context(), req.On); err != nil {
		c.logger.InfoContext(r.Context(), "controller.setMic", "error", err)
		rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.engine.IsMicOn()})
}

func (c controller) getChat(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.engine.ChatMessages()})
}

type sendChatRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func (c controller) sendChat(w http.ResponseWriter, r *http.Request) {
	var req sendChatRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	msg, err := c.engine.SendChat(req.Text)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": msg})
}

func (c controller) promoteCoHost(w http.ResponseWriter, r *http.Request) {
	if err := c.engine.PromoteCoHost(chi.URLParam(r, "identity")); err != nil {
		c.writeEngineError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

func (c controller) demoteCoHost(w http.ResponseWriter, r *http.Request) {
	if err := c.engine.DemoteCoHost(chi.URLParam(r, "identity")); err != nil {
		c.writeEngineError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

func (c controller) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrVideoNotFound), errors.Is(err, store.ErrItemNotFound):
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
	case errors.Is(err, engine.ErrNotAuthoritative):
		rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": err.Error()})
	default:
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
	}
}
