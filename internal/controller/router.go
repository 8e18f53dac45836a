package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Get("/api/state", c.getState)

	r.Route("/api/player", func(r chi.Router) {
		r.Post("/state", c.updatePlayerState)
		r.Post("/video", c.setVideo)
		r.Post("/ended", c.trackEnded)
		r.Post("/music/volume", c.setMusicVolume)
	})

	r.Route("/api/playlist", func(r chi.Router) {
		r.Post("/videos", c.addVideo)
		r.Delete("/videos/{video-id}", c.removeVideo)
		r.Post("/videos/{video-id}/select", c.selectVideo)
		r.Post("/videos/{video-id}/move", c.moveVideo)
		r.Post("/advance", c.advance)
		r.Post("/loop", c.toggleLoop)
		r.Post("/shuffle", c.toggleShuffle)
	})

	r.Post("/api/mic", c.setMic)

	r.Get("/api/chat", c.getChat)
	r.Post("/api/chat", c.sendChat)

	r.Post("/api/members/{identity}/promote", c.promoteCoHost)
	r.Post("/api/members/{identity}/demote", c.demoteCoHost)

	return r
}
