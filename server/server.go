// Package server is the development chat server the client talks to: a
// REST API for auth, channels, and messages, plus a websocket endpoint
// that pushes every mutation to all connected clients.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/store"
)

const tokenTTL = 24 * time.Hour

// type for context.WithValue keys
type ctxKey string

type serverError struct {
	Error   error
	Message string
	Status  int
}

// errHandler provides a less verbose way to handle errors. Failures are
// written as the JSON error body the client decodes.
type errHandler func(http.ResponseWriter, *http.Request) *serverError

func (fn errHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		logrus.Errorf("%v", err.Error)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(err.Status)
		json.NewEncoder(w).Encode(map[string]string{"message": err.Message})
	}
}

// fail maps an error from the storage layer to a response status using
// the shared taxonomy, falling back to a 500 for anything unexpected.
func fail(err error, fallback string) *serverError {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	switch {
	case parley.IsConflict(err):
		return &serverError{err, msg, http.StatusConflict}
	case parley.IsNotFound(err):
		return &serverError{err, msg, http.StatusNotFound}
	case parley.IsValidation(err):
		return &serverError{err, msg, http.StatusBadRequest}
	case parley.IsUnauthorized(err):
		return &serverError{err, msg, http.StatusUnauthorized}
	default:
		return &serverError{err, fallback, http.StatusInternalServerError}
	}
}

type claims struct {
	Username string `json:"username"`
	jwt.StandardClaims
}

// Server owns the router, the websocket hub, and the storage handle.
type Server struct {
	hub    *chathub
	router *mux.Router
	db     store.Database
	secret []byte
}

// New wires the routes and starts the websocket hub. Login and signup
// are open; everything else requires a bearer token.
func New(db store.Database, secret []byte) *Server {
	s := &Server{
		hub:    newChathub(),
		db:     db,
		secret: secret,
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Handle("/api/v1/login", s.Login()).Methods("POST")
	router.Handle("/api/v1/signup", s.Signup()).Methods("POST")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/channels", s.GetChannels()).Methods("GET")
	api.Handle("/channels", s.CreateChannel()).Methods("POST")
	api.Handle("/channels/{id}", s.RenameChannel()).Methods("PATCH")
	api.Handle("/channels/{id}", s.DeleteChannel()).Methods("DELETE")
	api.Handle("/messages", s.GetMessages()).Methods("GET")
	api.Handle("/messages", s.SendMessage()).Methods("POST")
	api.Use(s.requireAuth)

	router.Handle("/ws", s.requireAuth(s.HandleWS()))

	s.router = router
	go s.hub.run()
	return s
}

// Serve returns the handler to pass to http.ListenAndServe.
func (s *Server) Serve() http.Handler {
	n := negroni.New(negroni.NewRecovery(), negroni.NewLogger())
	n.UseHandler(s.router)
	return n
}

// publish fans an event out to every connected websocket client.
func (s *Server) publish(kind string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.Errorf("error encoding %s event %v", kind, err)
		return
	}
	s.hub.broadcast <- parley.WireEvent{Event: kind, Payload: raw}
}

func (s *Server) signToken(username string) (string, error) {
	c := &claims{
		Username: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.secret)
}

// Login checks the credentials against storage and returns a signed
// token. Wrong password and unknown user produce the same response.
func (s *Server) Login() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		var creds parley.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return &serverError{err, "unable to decode payload", http.StatusBadRequest}
		}

		hash, err := s.db.UserForAuth(creds.Username)
		if err != nil {
			return &serverError{err, "incorrect username or password", http.StatusUnauthorized}
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
			return &serverError{err, "incorrect username or password", http.StatusUnauthorized}
		}

		tokenString, err := s.signToken(creds.Username)
		if err != nil {
			return &serverError{err, "unable to sign token", http.StatusInternalServerError}
		}

		json.NewEncoder(w).Encode(parley.AuthResponse{Token: tokenString, Username: creds.Username})
		return nil
	}
}

// Signup registers a new user and logs them in. A taken username comes
// back as a conflict.
func (s *Server) Signup() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		var creds parley.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return &serverError{err, "unable to decode payload", http.StatusBadRequest}
		}

		creds.Username = strings.TrimSpace(creds.Username)
		if creds.Username == "" || creds.Password == "" {
			return &serverError{errors.New("empty credentials"), "username and password are required", http.StatusBadRequest}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
		if err != nil {
			return &serverError{err, "unable to hash password", http.StatusInternalServerError}
		}

		if _, err := s.db.CreateUser(creds.Username, hash); err != nil {
			return fail(err, "unable to create user")
		}

		tokenString, err := s.signToken(creds.Username)
		if err != nil {
			return &serverError{err, "unable to sign token", http.StatusInternalServerError}
		}

		json.NewEncoder(w).Encode(parley.AuthResponse{Token: tokenString, Username: creds.Username})
		return nil
	}
}

func (s *Server) GetChannels() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		channels, err := s.db.GetChannels()
		if err != nil {
			return fail(err, "unable to get channels")
		}

		json.NewEncoder(w).Encode(channels)
		return nil
	}
}

func (s *Server) CreateChannel() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return &serverError{err, "unable to decode payload", http.StatusBadRequest}
		}

		name := strings.TrimSpace(payload.Name)
		if len(name) < parley.ChannelNameMin || len(name) > parley.ChannelNameMax {
			return &serverError{errors.Errorf("bad channel name %q", name), "channel name must be 3 to 20 characters", http.StatusBadRequest}
		}

		channel, err := s.db.CreateChannel(name)
		if err != nil {
			return fail(err, "unable to create channel")
		}

		s.publish(parley.EventNewChannel, channel)
		json.NewEncoder(w).Encode(channel)
		return nil
	}
}

func (s *Server) RenameChannel() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		id := mux.Vars(r)["id"]
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return &serverError{err, "unable to decode payload", http.StatusBadRequest}
		}

		name := strings.TrimSpace(payload.Name)
		if len(name) < parley.ChannelNameMin || len(name) > parley.ChannelNameMax {
			return &serverError{errors.Errorf("bad channel name %q", name), "channel name must be 3 to 20 characters", http.StatusBadRequest}
		}

		if err := s.db.RenameChannel(id, name); err != nil {
			return fail(err, "unable to rename channel")
		}

		s.publish(parley.EventRenameChannel, parley.ChannelRef{ID: id, Name: name})
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

func (s *Server) DeleteChannel() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		id := mux.Vars(r)["id"]

		if _, err := s.db.DeleteChannel(id); err != nil {
			return fail(err, "unable to delete channel")
		}

		s.publish(parley.EventRemoveChannel, parley.ChannelRef{ID: id})
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

func (s *Server) GetMessages() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		messages, err := s.db.GetMessages()
		if err != nil {
			return fail(err, "unable to get messages")
		}

		json.NewEncoder(w).Encode(messages)
		return nil
	}
}

func (s *Server) SendMessage() errHandler {
	return func(w http.ResponseWriter, r *http.Request) *serverError {
		var payload parley.OutgoingMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return &serverError{err, "unable to decode payload", http.StatusBadRequest}
		}

		payload.Body = strings.TrimSpace(payload.Body)
		if payload.Body == "" {
			return &serverError{errors.New("empty message body"), "message body is required", http.StatusBadRequest}
		}

		username, ok := r.Context().Value(ctxKey("username")).(string)
		if !ok {
			return &serverError{errors.New("no username in context"), "unable to decode current user", http.StatusBadRequest}
		}

		message, err := s.db.CreateMessage(username, payload)
		if err != nil {
			return fail(err, "unable to create message")
		}

		s.publish(parley.EventNewMessage, message)
		json.NewEncoder(w).Encode(message)
		return nil
	}
}

// requireAuth provides an authentication middleware checking the bearer
// token and stashing the username in the request context.
func (s *Server) requireAuth(f http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokStr := strings.TrimPrefix(header, "Bearer ")
		if tokStr == "" || tokStr == header {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		c := &claims{}
		tkn, err := jwt.ParseWithClaims(tokStr, c, func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		})

		if err != nil || !tkn.Valid {
			logrus.Error(err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey("username"), c.Username)
		f.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleWS upgrades the connection and registers a new client with the
// hub.
func (s *Server) HandleWS() errHandler {
	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) *serverError {
		username, ok := r.Context().Value(ctxKey("username")).(string)
		if !ok {
			return &serverError{errors.New("no username in context"), "unable to decode current user", http.StatusBadRequest}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.Errorf("unable to upgrade connection %v", err)
			return nil
		}

		cl := &client{
			conn:     conn,
			send:     make(chan parley.WireEvent, 16),
			hub:      s.hub,
			username: username,
		}

		s.hub.register <- cl

		go cl.writePump()
		go cl.readPump()
		return nil
	}
}
