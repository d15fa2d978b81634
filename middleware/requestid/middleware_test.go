package requestid_test

import (
	"testing"

	"github.com/portaros/portaros"
	"github.com/portaros/portaros/middleware/requestid"
)

func TestMiddleware(t *testing.T) {
	mw := requestid.Middleware()

	req := portaros.NewRequest("GET", "/test", nil)
	var id string
	resp := mw(req, func(r *portaros.Request) *portaros.Response {
		id = requestid.FromRequest(r)
		return portaros.NewResponse(200, nil)
	})

	if len(id) != 36 {
		t.Errorf("expected a uuid, got %q", id)
	}
	if got := resp.Header().Get(requestid.Header); got != id {
		t.Errorf("expected the id echoed on the response header, got %q", got)
	}
}

func TestMiddlewareUniquePerDispatch(t *testing.T) {
	mw := requestid.Middleware()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		req := portaros.NewRequest("GET", "/test", nil)
		mw(req, func(r *portaros.Request) *portaros.Response {
			seen[requestid.FromRequest(r)] = true
			return portaros.NewResponse(200, nil)
		})
	}

	if len(seen) != 3 {
		t.Errorf("expected a fresh id per dispatch, got %d unique ids", len(seen))
	}
}

func TestFromRequestWithoutMiddleware(t *testing.T) {
	req := portaros.NewRequest("GET", "/test", nil)
	if got := requestid.FromRequest(req); got != "" {
		t.Errorf("expected an empty id, got %q", got)
	}
}
