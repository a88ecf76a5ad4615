package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/auth"
	"agribank-quiz/internal/bank"
	"agribank-quiz/internal/domain"
)

const maxUploadSize = 32 << 20

// APIHandler serves the JSON API around the quiz engine.
type APIHandler struct {
	quiz      *app.QuizService
	bank      *app.BankService
	templates *app.TemplateService
	users     *app.UserService
	presence  *app.Presence
}

// NewAPIHandler wires the API. presence may be nil.
func NewAPIHandler(quiz *app.QuizService, bankSvc *app.BankService, templates *app.TemplateService, users *app.UserService, presence *app.Presence) *APIHandler {
	return &APIHandler{quiz: quiz, bank: bankSvc, templates: templates, users: users, presence: presence}
}

// NewRouter mounts the API, the quiz socket and the health check.
func NewRouter(api *APIHandler, ws *WSHandler, logger *log.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)

	authed := func(h http.HandlerFunc) http.Handler { return RequireAuth(api.users)(h) }
	admin := func(h http.HandlerFunc) http.Handler { return RequireAuth(api.users)(RequireAdmin(h)) }

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/auth/register", api.register).Methods(http.MethodPost)
	s.HandleFunc("/auth/login", api.login).Methods(http.MethodPost)
	s.Handle("/auth/logout", authed(api.logout)).Methods(http.MethodPost)

	s.Handle("/me", authed(api.me)).Methods(http.MethodGet)
	s.Handle("/me/password", authed(api.changePassword)).Methods(http.MethodPut)
	s.Handle("/me/stats", authed(api.myStats)).Methods(http.MethodGet)

	s.Handle("/leaderboard", authed(api.leaderboard)).Methods(http.MethodGet)
	s.Handle("/templates", authed(api.activeTemplates)).Methods(http.MethodGet)
	s.Handle("/templates/{id}", authed(api.template)).Methods(http.MethodGet)
	s.Handle("/questions/categories", authed(api.categories)).Methods(http.MethodGet)
	s.Handle("/questions/lookup", authed(api.lookup)).Methods(http.MethodGet)

	s.Handle("/admin/questions", admin(api.questions)).Methods(http.MethodGet)
	s.Handle("/admin/questions", admin(api.clearQuestions)).Methods(http.MethodDelete)
	s.Handle("/admin/questions/import", admin(api.importQuestions)).Methods(http.MethodPost)
	s.Handle("/admin/questions/export", admin(api.exportQuestions)).Methods(http.MethodGet)
	s.Handle("/admin/templates", admin(api.allTemplates)).Methods(http.MethodGet)
	s.Handle("/admin/templates", admin(api.createTemplate)).Methods(http.MethodPost)
	s.Handle("/admin/templates/{id}", admin(api.updateTemplate)).Methods(http.MethodPut)
	s.Handle("/admin/templates/{id}", admin(api.deleteTemplate)).Methods(http.MethodDelete)
	s.Handle("/admin/results", admin(api.clearResults)).Methods(http.MethodDelete)
	s.Handle("/admin/users", admin(api.listUsers)).Methods(http.MethodGet)
	s.Handle("/admin/users", admin(api.createUser)).Methods(http.MethodPost)
	s.Handle("/admin/users/{id}", admin(api.updateUser)).Methods(http.MethodPatch)
	return r
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginResponse struct {
	Token     string             `json:"token"`
	User      domain.UserProfile `json:"user"`
	SessionID string             `json:"sessionId,omitempty"`
}

func (a *APIHandler) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	u, err := a.users.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// login issues a token and, with presence enabled, registers this device as the
// account's only active one. The returned sessionId is passed to /ws as device.
func (a *APIHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	token, u, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := loginResponse{Token: token, User: u}
	if a.presence != nil {
		active, err := a.presence.Begin(r.Context(), u.ID, uuid.NewString(), r.UserAgent(), clientIP(r))
		if err != nil {
			writeError(w, err)
			return
		}
		resp.SessionID = active.SessionID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *APIHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if a.presence != nil && req.SessionID != "" {
		if err := a.presence.End(r.Context(), userID(r), req.SessionID); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *APIHandler) me(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *APIHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current string `json:"currentPassword"`
		Next    string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.users.ChangePassword(r.Context(), userID(r), req.Current, req.Next); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *APIHandler) myStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.quiz.UserStats(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := a.quiz.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *APIHandler) activeTemplates(w http.ResponseWriter, r *http.Request) {
	a.listTemplates(w, r, true)
}

func (a *APIHandler) allTemplates(w http.ResponseWriter, r *http.Request) {
	a.listTemplates(w, r, false)
}

func (a *APIHandler) listTemplates(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	templates, err := a.templates.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// template hides inactive templates from players.
func (a *APIHandler) template(w http.ResponseWriter, r *http.Request) {
	t, err := a.templates.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if claims, ok := auth.FromContext(r.Context()); !t.IsActive && (!ok || claims.Role != domain.RoleAdmin) {
		writeError(w, domain.ErrTemplateNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *APIHandler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.QuizTemplate
	if !decode(w, r, &t) {
		return
	}
	created, err := a.templates.Create(r.Context(), t, userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *APIHandler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.QuizTemplate
	if !decode(w, r, &t) {
		return
	}
	t.ID = mux.Vars(r)["id"]
	updated, err := a.templates.Update(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *APIHandler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.templates.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *APIHandler) categories(w http.ResponseWriter, r *http.Request) {
	counts, err := a.bank.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *APIHandler) lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches, err := a.quiz.Lookup(r.Context(), q.Get("q"), q.Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (a *APIHandler) questions(w http.ResponseWriter, r *http.Request) {
	questions, err := a.bank.Questions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *APIHandler) clearQuestions(w http.ResponseWriter, r *http.Request) {
	if err := a.bank.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importQuestions accepts a multipart "file" upload or a raw body. The format
// comes from the format parameter or the uploaded file name.
func (a *APIHandler) importQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))

	var (
		body io.Reader = r.Body
		name           = r.URL.Query().Get("format")
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: missing file field: %v", errBadRequest, err))
			return
		}
		defer file.Close()
		body = file
		if name == "" {
			name = header.Filename
		}
	}
	if name != "" && !strings.Contains(name, ".") {
		name = "upload." + name
	}
	format, err := bank.FormatOf(name)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := a.bank.Import(r.Context(), body, format, replace)
	if err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error(), Detail: report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *APIHandler) exportQuestions(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(bank.FormatCSV)
	}
	format, err := bank.FormatOf("questions." + name)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if _, err := a.bank.Export(r.Context(), &buf, format); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="questions.%s"`, format))
	_, _ = buf.WriteTo(w)
}

func (a *APIHandler) clearResults(w http.ResponseWriter, r *http.Request) {
	n, err := a.quiz.ClearResults(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (a *APIHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *APIHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		credentials
		Role domain.Role `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	u, err := a.users.CreateUser(r.Context(), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *APIHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	var upd domain.UserUpdate
	if !decode(w, r, &upd) {
		return
	}
	u, err := a.users.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json: %v", errBadRequest, err))
		return false
	}
	return true
}

func userID(r *http.Request) string {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.UserID()
}

func contentType(f bank.Format) string {
	switch f {
	case bank.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case bank.FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}
