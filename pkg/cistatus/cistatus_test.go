package cistatus_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/cistatus"
)

func TestHydraClient_KnownFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "broken-pkg"):
			fmt.Fprint(w, `{"finished": 1, "buildstatus": 1}`)
		case strings.Contains(r.URL.Path, "healthy-pkg"):
			fmt.Fprint(w, `{"finished": 1, "buildstatus": 0}`)
		case strings.Contains(r.URL.Path, "queued-pkg"):
			fmt.Fprint(w, `{"finished": 0, "buildstatus": 0}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := cistatus.NewHydraClient(nil)
	client.BaseURL = server.URL

	known := client.KnownFailures(context.Background(),
		[]string{"broken-pkg", "healthy-pkg", "queued-pkg", "missing-pkg"},
		"x86_64-linux", "master")

	if !known["broken-pkg"] {
		t.Error("finished failing build must be a known failure")
	}
	if known["healthy-pkg"] {
		t.Error("finished succeeding build must not be a known failure")
	}
	if known["queued-pkg"] {
		t.Error("unfinished build must not be a known failure")
	}
	if _, ok := known["missing-pkg"]; ok {
		t.Error("unanswerable targets must be absent, not false")
	}
}

func TestHydraClient_JobsetFromChannel(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"finished": 1, "buildstatus": 0}`)
	}))
	defer server.Close()

	client := cistatus.NewHydraClient(nil)
	client.BaseURL = server.URL

	client.KnownFailures(context.Background(), []string{"pkg"}, "x86_64-linux", "master")
	client.KnownFailures(context.Background(), []string{"pkg"}, "x86_64-linux", "release-24.05")

	if len(paths) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(paths))
	}
	if !strings.HasPrefix(paths[0], "/job/nixpkgs/trunk/") {
		t.Errorf("master must map to the trunk jobset, got %s", paths[0])
	}
	if !strings.HasPrefix(paths[1], "/job/nixos/release-24.05/") {
		t.Errorf("release branch must map to its own jobset, got %s", paths[1])
	}
}

func TestHydraClient_UnreachableServerDegradesToUnknown(t *testing.T) {
	client := cistatus.NewHydraClient(nil)
	client.BaseURL = "http://127.0.0.1:1"

	known := client.KnownFailures(context.Background(), []string{"pkg"}, "x86_64-linux", "")
	if len(known) != 0 {
		t.Errorf("network failure must yield no answers, got %v", known)
	}
}
