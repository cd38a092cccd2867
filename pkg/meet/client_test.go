package meet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestClientCreateRoomRequest(t *testing.T) {
	const expectedURL = "http://meet.test/v1/rooms"
	respBody := `{"name":"booking-abc","url":"https://tutorlink.daily.co/booking-abc"}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["name"] != "booking-abc" {
			t.Fatalf("unexpected name %q", payload["name"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-key", WithBaseURL("http://meet.test/v1"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	start := time.Now().Add(time.Hour)
	room, err := client.CreateRoom(context.Background(), RoomRequest{
		Name:    "booking-abc",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "Bearer test-key" {
		t.Fatalf("auth header missing")
	}
	if room.URL != "https://tutorlink.daily.co/booking-abc" {
		t.Fatalf("unexpected room url %q", room.URL)
	}
}

func TestClientCreateRoomRejectsBadWindow(t *testing.T) {
	client, err := NewClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	now := time.Now()
	_, err = client.CreateRoom(context.Background(), RoomRequest{
		Name:    "booking-abc",
		StartAt: now,
		EndAt:   now,
	})
	if err == nil {
		t.Fatal("expected validation error for empty window")
	}
}

func TestClientDeleteRoomTreatsNotFoundAsSuccess(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"error":"not-found"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://meet.test/v1"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.DeleteRoom(context.Background(), "booking-abc"); err != nil {
		t.Fatalf("delete room: %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
