package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestModificationImageForwardsPayload(t *testing.T) {
	var forwarded string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		forwarded = string(body)
		w.Write([]byte("queued"))
	}))
	defer hook.Close()

	app := newTestApp(newMemRepo(), &fakePipeline{}, &fakeUploads{})
	app.ModificationWebhookURL = hook.URL

	rec := httptest.NewRecorder()
	payload := `{"projetId":"rec1","instructions":"plus fin"}`
	app.ModificationImage(rec, httptest.NewRequest(http.MethodPost, "/modification-image", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	if forwarded != payload {
		t.Fatalf("forwarded = %q, want the payload untouched", forwarded)
	}
	var resp modificationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Data != "queued" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestModificationImageWebhookFailure(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer hook.Close()

	app := newTestApp(newMemRepo(), &fakePipeline{}, &fakeUploads{})
	app.ModificationWebhookURL = hook.URL

	rec := httptest.NewRecorder()
	app.ModificationImage(rec, httptest.NewRequest(http.MethodPost, "/modification-image", strings.NewReader(`{}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	var resp modificationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success || resp.Error == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestModificationImageUnconfigured(t *testing.T) {
	app := newTestApp(newMemRepo(), &fakePipeline{}, &fakeUploads{})
	rec := httptest.NewRecorder()
	app.ModificationImage(rec, httptest.NewRequest(http.MethodPost, "/modification-image", strings.NewReader(`{}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
}
