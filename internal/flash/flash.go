// Package flash stores one-time notices in a cookie so that they survive a
// redirect and are shown on the next rendered page.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// CookieName is the name of the cookie holding pending messages.
const CookieName = "flash"

// Message kinds.
const (
	Info    = "info"
	Success = "success"
	Error   = "error"
)

// Messages maps a kind to its messages in the order they were added.
type Messages map[string][]string

// Add appends a message of the given kind to the messages still pending in
// r and writes them back to the client.
func Add(w http.ResponseWriter, r *http.Request, kind, message string) {
	messages := read(r)
	if messages == nil {
		messages = Messages{}
	}
	messages[kind] = append(messages[kind], message)
	b, err := json.Marshal(messages)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.URLEncoding.EncodeToString(b),
		Path:     "/",
		Secure:   r.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns the pending messages and tells the client to drop them.
func Pop(w http.ResponseWriter, r *http.Request) Messages {
	messages := read(r)
	if messages == nil {
		return Messages{}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   r.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return messages
}

func read(r *http.Request) Messages {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	b, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var messages Messages
	if err := json.Unmarshal(b, &messages); err != nil {
		return nil
	}
	return messages
}
