package protobuf

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/portaros/portaros"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestBody_ValidMessage(t *testing.T) {
	payload, err := proto.Marshal(structpb.NewStringValue("Alice"))
	if err != nil {
		t.Fatal(err)
	}
	req := portaros.NewRequest("POST", "/users/get", payload)

	mw := Body("input", func() *structpb.Value { return &structpb.Value{} })

	nextCalled := false
	resp := mw(req, func(r *portaros.Request) *portaros.Response {
		nextCalled = true
		input, ok := r.Get("input").(*structpb.Value)
		if !ok {
			t.Fatal("expected the decoded message attached")
		}
		if input.GetStringValue() != "Alice" {
			t.Errorf("expected 'Alice', got %q", input.GetStringValue())
		}
		return portaros.NewResponse(200, nil)
	})

	if !nextCalled {
		t.Error("expected next to be called")
	}
	if resp.Status != 200 {
		t.Errorf("expected 200, got %d", resp.Status)
	}
}

func TestBody_MalformedMessage(t *testing.T) {
	req := portaros.NewRequest("POST", "/users/get", []byte{0xFF, 0xFF, 0xFF, 0xFF})

	mw := Body("input", func() *structpb.Value { return &structpb.Value{} })

	nextCalled := false
	resp := mw(req, func(r *portaros.Request) *portaros.Response {
		nextCalled = true
		return portaros.NewResponse(200, nil)
	})

	if nextCalled {
		t.Error("expected next not to be called for a malformed body")
	}
	if resp.Status != 400 {
		t.Errorf("expected 400, got %d", resp.Status)
	}
	if resp.Data != "malformed protobuf body" {
		t.Errorf("expected the malformed-body message, got %v", resp.Data)
	}
	if resp.Exception() == nil {
		t.Error("expected the decode error attached")
	}
}

func TestResponse(t *testing.T) {
	resp := Response(200, structpb.NewStringValue("out"))

	if resp.Status != 200 {
		t.Errorf("expected 200, got %d", resp.Status)
	}
	if resp.Raw == nil {
		t.Fatal("expected a raw response")
	}
	var value structpb.Value
	if err := proto.Unmarshal(resp.Raw, &value); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if value.GetStringValue() != "out" {
		t.Errorf("expected 'out', got %q", value.GetStringValue())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("expected the protobuf content type, got %q", ct)
	}
}

func TestBody_RoundtripOverHTTP(t *testing.T) {
	app := portaros.New(portaros.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	app.Routes().Post("/echo", func(req *portaros.Request) *portaros.Response {
		input := req.Get("input").(*structpb.Value)
		return Response(200, structpb.NewStringValue(input.GetStringValue()+"!"))
	}, Body("input", func() *structpb.Value { return &structpb.Value{} }))

	server := httptest.NewServer(app)
	defer server.Close()

	payload, err := proto.Marshal(structpb.NewStringValue("hi"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(server.URL+"/echo", "application/x-protobuf", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("expected the protobuf content type, got %q", ct)
	}
	var value structpb.Value
	if err := proto.Unmarshal(body, &value); err != nil {
		t.Fatalf("unmarshal failed: %v, got %x", err, body)
	}
	if value.GetStringValue() != "hi!" {
		t.Errorf("expected the echoed value, got %q", value.GetStringValue())
	}
}
