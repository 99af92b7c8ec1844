package hue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newBridgeServer serves the CLIP v2 resource endpoint with the given
// resource list, rejecting requests without the application key.
func newBridgeServer(t *testing.T, resources []Resource) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/clip/v2/resource", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("hue-application-key") == "" {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(clipResponse{
				Errors: []clipError{{Description: "unauthorized user"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(clipResponse{Data: resources})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(server *httptest.Server, appKey string) *Client {
	return NewClient("ignored", appKey, WithBaseURL(server.URL))
}

func TestIsV2Bridge(t *testing.T) {
	t.Run("v2 endpoint present", func(t *testing.T) {
		server := newBridgeServer(t, nil)
		client := newTestClient(server, "app-key")

		v2, err := client.IsV2Bridge(context.Background())
		if err != nil {
			t.Fatalf("IsV2Bridge() error: %v", err)
		}
		if !v2 {
			t.Error("IsV2Bridge() = false, want true")
		}
	})

	t.Run("v1-only firmware answers 404", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(server.Close)
		client := newTestClient(server, "app-key")

		v2, err := client.IsV2Bridge(context.Background())
		if err != nil {
			t.Fatalf("IsV2Bridge() error: %v", err)
		}
		if v2 {
			t.Error("IsV2Bridge() = true, want false for 404")
		}
	})

	t.Run("unauthorized still proves v2 support", func(t *testing.T) {
		server := newBridgeServer(t, nil)
		client := newTestClient(server, "")

		v2, err := client.IsV2Bridge(context.Background())
		if err != nil {
			t.Fatalf("IsV2Bridge() error: %v", err)
		}
		if !v2 {
			t.Error("IsV2Bridge() = false, want true for 403")
		}
	})

	t.Run("unreachable bridge", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client := newTestClient(server, "app-key")

		if _, err := client.IsV2Bridge(context.Background()); !errors.Is(err, ErrBridgeUnreachable) {
			t.Errorf("IsV2Bridge() error = %v, want ErrBridgeUnreachable", err)
		}
	})
}

func TestFetchResourceGraph(t *testing.T) {
	server := newBridgeServer(t, fixtureGraph().Resources)
	client := newTestClient(server, "app-key")

	graph, err := client.FetchResourceGraph(context.Background())
	if err != nil {
		t.Fatalf("FetchResourceGraph() error: %v", err)
	}
	if len(graph.Resources) != len(fixtureGraph().Resources) {
		t.Errorf("len(Resources) = %d, want %d", len(graph.Resources), len(fixtureGraph().Resources))
	}

	lights := graph.ByType(ResourceTypeLight)
	if len(lights) != 1 || lights[0].ID != lightGUID {
		t.Errorf("ByType(light) = %v, want single fixture light", lights)
	}
}

func TestFetchResourceGraphErrorPayload(t *testing.T) {
	server := newBridgeServer(t, nil)
	client := newTestClient(server, "")

	if _, err := client.FetchResourceGraph(context.Background()); !errors.Is(err, ErrBridgeResponse) {
		t.Errorf("FetchResourceGraph() error = %v, want ErrBridgeResponse", err)
	}
}

func TestFetchResourceGraphUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := newTestClient(server, "app-key")

	if _, err := client.FetchResourceGraph(context.Background()); !errors.Is(err, ErrBridgeUnreachable) {
		t.Errorf("FetchResourceGraph() error = %v, want ErrBridgeUnreachable", err)
	}
}
