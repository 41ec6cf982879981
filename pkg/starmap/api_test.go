package starmap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchSnapshotDecodesStars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stars" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `[
			{"id":1,"x":10,"y":20,"message":"hi","last_liked":1735689700,"creation_date":1735689600,"user_id":4,"username":"astra"},
			{"id":2,"x":30,"y":40,"message":"yo","last_liked":1735689800,"creation_date":1735689700,"user_id":5,"username":"nova"}
		]`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	stars, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if len(stars) != 2 {
		t.Fatalf("got %d stars, want 2", len(stars))
	}
	if stars[0].ID != 1 || stars[0].Username != "astra" || stars[0].X != 10 {
		t.Fatalf("star[0] decoded wrong: %+v", stars[0])
	}
}

func TestCreateStarSendsAttributionAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization header %q", got)
		}
		var body struct {
			X        float64 `json:"x"`
			Y        float64 `json:"y"`
			Message  string  `json:"message"`
			UserID   int64   `json:"user_id"`
			Username string  `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding create body: %v", err)
		}
		if body.Message != "hello" || body.UserID != 7 || body.Username != "astra" {
			t.Errorf("create body %+v", body)
		}
		io.WriteString(w, `{"id":42,"x":1,"y":2,"message":"hello","user_id":7,"username":"astra"}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Token: "tok123", UserID: 7, Username: "astra", HTTPClient: srv.Client()}
	res, err := c.CreateStar(context.Background(), 1, 2, "hello")
	if err != nil {
		t.Fatalf("CreateStar: %v", err)
	}
	if res.Rejected || res.Star == nil || res.Star.ID != 42 {
		t.Fatalf("create result %+v", res)
	}
}

func TestCreateStarSurfacesContentRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":false,"message":"watch your language"}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	res, err := c.CreateStar(context.Background(), 1, 2, "&$%!")
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if !res.Rejected || res.Reason != "watch your language" {
		t.Fatalf("rejection not surfaced: %+v", res)
	}
}

func TestLikeStarPostsToActionPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if err := c.LikeStar(context.Background(), 9); err != nil {
		t.Fatalf("LikeStar: %v", err)
	}
	if path != "POST /stars/9/like" {
		t.Fatalf("like hit %q", path)
	}
	if err := c.DislikeStar(context.Background(), 9); err != nil {
		t.Fatalf("DislikeStar: %v", err)
	}
	if path != "POST /stars/9/dislike" {
		t.Fatalf("dislike hit %q", path)
	}
}

func TestFetchSnapshotWithRetryRecovers(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `[{"id":1,"x":1,"y":1,"message":"m","creation_date":1735689600}]`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	stars, err := c.FetchSnapshotWithRetry(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshotWithRetry: %v", err)
	}
	if len(stars) != 1 || attempts != 3 {
		t.Fatalf("stars=%d attempts=%d", len(stars), attempts)
	}
}

func TestRemoveStarEndpoints(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if err := c.RemoveStar(context.Background(), 3); err != nil {
		t.Fatalf("RemoveStar: %v", err)
	}
	if err := c.RemoveAllStars(context.Background()); err != nil {
		t.Fatalf("RemoveAllStars: %v", err)
	}
	if len(paths) != 2 || paths[0] != "DELETE /stars/3" || paths[1] != "DELETE /stars" {
		t.Fatalf("delete paths %v", paths)
	}
}
