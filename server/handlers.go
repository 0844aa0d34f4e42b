package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

const maxBodyBytes = 1 << 20

type languageDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func toLanguage(l translator.Language) languageDTO {
	return languageDTO{Code: l.Code, Name: l.Name}
}

// OutcomeResponse is the JSON form of a translator.Outcome.
type OutcomeResponse struct {
	Status   string       `json:"status"` // translated, not_needed, rate_limited, failed
	Text     string       `json:"text,omitempty"`
	Original string       `json:"original,omitempty"`
	Source   *languageDTO `json:"source,omitempty"`
	Target   *languageDTO `json:"target,omitempty"`
	Backend  string       `json:"backend,omitempty"`
	Cached   bool         `json:"cached,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

const (
	StatusTranslated  = "translated"
	StatusNotNeeded   = "not_needed"
	StatusRateLimited = "rate_limited"
	StatusFailed      = "failed"
)

func outcomeResponse(out translator.Outcome) (OutcomeResponse, int) {
	switch o := out.(type) {
	case *translator.Success:
		src, tgt := toLanguage(o.Source), toLanguage(o.Target)
		return OutcomeResponse{
			Status:   StatusTranslated,
			Text:     o.Text,
			Original: o.Original,
			Source:   &src,
			Target:   &tgt,
			Backend:  o.Backend,
			Cached:   o.Cached,
		}, http.StatusOK
	case *translator.NoTranslationNeeded:
		return OutcomeResponse{Status: StatusNotNeeded, Reason: o.Reason}, http.StatusOK
	case *translator.RateLimited:
		return OutcomeResponse{Status: StatusRateLimited, Reason: "too many messages"}, http.StatusTooManyRequests
	case *translator.Failed:
		return OutcomeResponse{Status: StatusFailed, Reason: o.Reason}, http.StatusServiceUnavailable
	default:
		return OutcomeResponse{Status: StatusFailed, Reason: "unknown outcome"}, http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg, RequestID: GetRequestID(r.Context())})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// localeFor returns locale, or the actor's stored preference when locale is
// empty. An empty result lets TargetFor fall back to the default target.
func (s *Server) localeFor(ctx context.Context, actor translator.ActorID, locale string) string {
	if locale != "" || actor == "" || s.langs == nil {
		return locale
	}
	stored, ok, err := s.langs.Get(ctx, actor)
	if err != nil {
		s.logger.Warn().Err(err).Str("actor", string(actor)).Msg("language lookup failed")
		return ""
	}
	if !ok {
		return ""
	}
	return stored
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": translator.FullVersion(),
	})
}

// TranslateRequest is the body of POST /v1/translate.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	Locale     string `json:"locale,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, r, http.StatusBadRequest, "text is required")
		return
	}

	actor := translator.ActorID(req.ActorID)
	out := s.manager.Translate(r.Context(), translator.Request{
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: s.localeFor(r.Context(), actor, req.Locale),
		ActorID:    actor,
	})

	resp, status := outcomeResponse(out)
	s.writeJSON(w, status, resp)
}

// BatchRequest is the body of POST /v1/translate/batch.
type BatchRequest struct {
	Text     string          `json:"text"`
	Audience []AudienceEntry `json:"audience"`
}

type AudienceEntry struct {
	ActorID string `json:"actor_id"`
	Locale  string `json:"locale,omitempty"`
}

// BatchResponse maps actor ids to their outcome.
type BatchResponse struct {
	Results map[string]OutcomeResponse `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, r, http.StatusBadRequest, "text is required")
		return
	}

	audience := make([]translator.Audience, 0, len(req.Audience))
	for _, a := range req.Audience {
		if a.ActorID == "" {
			s.writeError(w, r, http.StatusBadRequest, "every audience entry needs an actor_id")
			return
		}
		id := translator.ActorID(a.ActorID)
		audience = append(audience, translator.Audience{
			ActorID: id,
			Locale:  s.localeFor(r.Context(), id, a.Locale),
		})
	}

	results := s.manager.TranslateForActors(r.Context(), req.Text, audience)

	resp := BatchResponse{Results: make(map[string]OutcomeResponse, len(results))}
	for id, out := range results {
		resp.Results[string(id)], _ = outcomeResponse(out)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type detectResponse struct {
	Language         languageDTO  `json:"language"`
	Target           *languageDTO `json:"target,omitempty"`
	NeedsTranslation *bool        `json:"needs_translation,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		s.writeError(w, r, http.StatusBadRequest, "text query parameter is required")
		return
	}
	d := s.manager.Detector()
	resp := detectResponse{Language: toLanguage(d.Detect(text))}

	if locale := r.URL.Query().Get("locale"); locale != "" {
		target := toLanguage(translator.LanguageOf(translator.TargetFor(locale)))
		needs := translator.NeedsTranslation(d, text, locale)
		resp.Target = &target
		resp.NeedsTranslation = &needs
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type backendsResponse struct {
	Order          []string                `json:"order"`
	LastSuccessful string                  `json:"last_successful,omitempty"`
	Suspensions    []translator.Suspension `json:"suspensions"`
}

func (s *Server) handleBackends(w http.ResponseWriter, _ *http.Request) {
	fb := s.manager.Fallback()
	suspensions := fb.Suspensions().Snapshot()
	if suspensions == nil {
		suspensions = []translator.Suspension{}
	}
	s.writeJSON(w, http.StatusOK, backendsResponse{
		Order:          fb.Backends(),
		LastSuccessful: fb.LastSuccessful(),
		Suspensions:    suspensions,
	})
}

type updateBackendsRequest struct {
	Order []string `json:"order"`
}

func (s *Server) handleUpdateBackends(w http.ResponseWriter, r *http.Request) {
	var req updateBackendsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	order := make([]string, 0, len(req.Order))
	for _, name := range req.Order {
		if name = strings.TrimSpace(name); name != "" {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "order must name at least one backend")
		return
	}

	fb := s.manager.Fallback()
	fb.UpdateBackends(order)
	s.logger.Info().Strs("order", fb.Backends()).Msg("backend order updated")
	s.handleBackends(w, r)
}

func (s *Server) handleUnsuspend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reg := s.manager.Fallback().Suspensions()

	removed := 0
	if key := r.URL.Query().Get("key"); key != "" {
		if reg.Remove(name, key) {
			removed = 1
		}
	} else {
		removed = reg.RemoveBackend(name)
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ClearCache(); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type langBody struct {
	ActorID string `json:"actor_id,omitempty"`
	Lang    string `json:"lang"`
}

func (s *Server) requireLangs(w http.ResponseWriter, r *http.Request) bool {
	if s.langs == nil {
		s.writeError(w, r, http.StatusNotImplemented, "language storage is not configured")
		return false
	}
	return true
}

func (s *Server) handleGetLang(w http.ResponseWriter, r *http.Request) {
	if !s.requireLangs(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	lang, ok, err := s.langs.Get(r.Context(), translator.ActorID(id))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "no language set for "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, langBody{ActorID: id, Lang: lang})
}

func (s *Server) handlePutLang(w http.ResponseWriter, r *http.Request) {
	if !s.requireLangs(w, r) {
		return
	}
	var body langBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.langs.Save(r.Context(), translator.ActorID(id), body.Lang); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, langBody{ActorID: id, Lang: body.Lang})
}

func (s *Server) handleDeleteLang(w http.ResponseWriter, r *http.Request) {
	if !s.requireLangs(w, r) {
		return
	}
	if err := s.langs.Remove(r.Context(), translator.ActorID(chi.URLParam(r, "id"))); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotices streams fallback and recovery notices as server-sent events
// until the client goes away.
func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		s.writeError(w, r, http.StatusNotImplemented, "notices are not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsubscribe := s.notices.Subscribe(16)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to encode notice")
				continue
			}
			if err := writeEvent(w, string(n.Kind), data); err != nil {
				s.logger.Debug().Err(err).Msg("notice stream closed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
