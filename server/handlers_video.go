package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/vod-danmaku/crypto"
	"github.com/onnwee/vod-danmaku/db"
)

// videoView is a catalog entry with its CDN locations. A restricted video's
// media URL is only given to a request holding its hash.
type videoView struct {
	db.Video
	CoverURL *string `json:"cover_url"`
	VideoURL *string `json:"video_url"`
}

func (h *Handlers) viewOf(v db.Video, hash string) videoView {
	out := videoView{Video: v}
	if h.urls == nil {
		return out
	}
	if v.Cover != nil && *v.Cover != "" {
		cover := h.urls.Cover(*v.Cover)
		out.CoverURL = &cover
	}
	switch {
	case !v.IsRestricted():
		media := h.urls.Video(v.Room, v.UUID)
		out.VideoURL = &media
	case hash != "" && v.RestrictedHash != nil && crypto.VerifyHash(*v.RestrictedHash, hash):
		media := h.urls.RestrictedVideo(v.Room, hash)
		out.VideoURL = &media
	}
	return out
}

func (h *Handlers) videoViews(videos []db.Video, hash string) []videoView {
	out := make([]videoView, len(videos))
	for i, v := range videos {
		out[i] = h.viewOf(v, hash)
	}
	return out
}

// HandleRoomsList returns a page of rooms: ?limit=50&offset=0.
func (h *Handlers) HandleRoomsList(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	rooms, err := h.store.ListRooms(r.Context(), parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))
	if err != nil {
		h.dbError(w, r, err)
		return
	}
	writeResult(w, rooms)
}

// HandleRoomsDispatcher routes /rooms/{id} and /rooms/{id}/videos.
func (h *Handlers) HandleRoomsDispatcher(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/rooms/"), "/")
	idPart, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, "room id must be an integer")
		return
	}
	switch sub {
	case "":
		room, err := h.store.GetRoom(r.Context(), id)
		if err != nil {
			h.dbError(w, r, err)
			return
		}
		writeResult(w, room)
	case "videos":
		videos, err := h.store.ListRoomVideos(r.Context(), id, parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))
		if err != nil {
			h.dbError(w, r, err)
			return
		}
		writeResult(w, h.videoViews(videos, ""))
	default:
		writeError(w, http.StatusNotFound, errNotFound, "unknown room route")
	}
}

// HandleVideosDispatcher routes /videos/{uuid} and its subroutes.
func (h *Handlers) HandleVideosDispatcher(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/videos/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if !validUUID(id) {
		writeError(w, http.StatusBadRequest, errBadRequest, "uuid must be 32 hex digits")
		return
	}
	id = strings.ToLower(id)

	switch sub {
	case "":
		h.handleVideo(w, r, id)
	case "parts":
		h.handleParts(w, r, id)
	case "restricted":
		h.handleRestricted(w, r, id)
	case "chat":
		h.handleChatWindow(w, r, id)
	case "chat/all":
		h.handleChatAll(w, r, id)
	case "chat/search":
		h.handleChatSearch(w, r, id)
	case "chat/stream":
		h.handleChatSSE(w, r, id)
	default:
		writeError(w, http.StatusNotFound, errNotFound, "unknown video route")
	}
}

func (h *Handlers) handleVideo(w http.ResponseWriter, r *http.Request, id string) {
	v, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		h.dbError(w, r, err)
		return
	}
	writeResult(w, h.viewOf(v, r.URL.Query().Get("hash")))
}

func (h *Handlers) handleParts(w http.ResponseWriter, r *http.Request, id string) {
	parts, err := h.store.ListParts(r.Context(), id)
	if err != nil {
		h.dbError(w, r, err)
		return
	}
	writeResult(w, h.videoViews(parts, r.URL.Query().Get("hash")))
}

// handleRestricted reports whether a video is restricted and, when
// ?verify_hash= is given for a restricted video, whether the hash is correct.
func (h *Handlers) handleRestricted(w http.ResponseWriter, r *http.Request, id string) {
	v, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		h.dbError(w, r, err)
		return
	}
	out := map[string]any{"restricted": v.IsRestricted()}
	if candidate := r.URL.Query().Get("verify_hash"); v.IsRestricted() && candidate != "" {
		out["hash_verified"] = v.RestrictedHash != nil && crypto.VerifyHash(*v.RestrictedHash, candidate)
	}
	writeResult(w, out)
}

// authorizeVideo loads the video and checks ?hash= for restricted ones. It
// writes the error response and returns false when access is denied.
func (h *Handlers) authorizeVideo(w http.ResponseWriter, r *http.Request, id string) bool {
	v, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		h.dbError(w, r, err)
		return false
	}
	if !v.IsRestricted() {
		return true
	}
	if v.RestrictedHash != nil && crypto.VerifyHash(*v.RestrictedHash, r.URL.Query().Get("hash")) {
		return true
	}
	writeError(w, http.StatusForbidden, errForbidden, "video is restricted")
	return false
}

func (h *Handlers) dbError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, errNotFound, err.Error())
		return
	}
	h.log.Error("catalog query failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, errDatabase, "database error")
}
