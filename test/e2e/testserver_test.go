package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestTestServerPrivateStubGenerator(t *testing.T) {
	binary := getTestServerBinary(t)
	sp := startServer(t, binary)

	start := time.Now()
	status, body := postJSON(t, sp.url+"/v1/documents", `{"template":"invoice","service":"private"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %v", status, body)
	}
	// The stub generator sleeps 500ms before returning.
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("elapsed = %v, want at least the stub delay", elapsed)
	}

	doc, _ := body["document"].(map[string]any)
	if doc["content_type"] != "application/pdf" {
		t.Errorf("content_type = %v, want application/pdf", doc["content_type"])
	}
	if doc["file_name"] != "invoice.pdf" {
		t.Errorf("file_name = %v, want invoice.pdf", doc["file_name"])
	}

	req, _ := body["request"].(map[string]any)
	id, _ := req["id"].(string)
	resp, err := http.Get(sp.url + "/v1/documents/" + id + "/content")
	if err != nil {
		t.Fatalf("GET content: %v", err)
	}
	defer resp.Body.Close()
	content, _ := io.ReadAll(resp.Body)
	if string(content) != "%PDF-1.7 stub document" {
		t.Errorf("content = %q, want stub document", content)
	}
}

func TestTestServerListsStubGenerators(t *testing.T) {
	binary := getTestServerBinary(t)
	sp := startServer(t, binary)

	resp, err := http.Get(sp.url + "/v1/generators")
	if err != nil {
		t.Fatalf("GET /v1/generators: %v", err)
	}
	defer resp.Body.Close()

	var infos []struct {
		Service      string `json:"service"`
		Capabilities struct {
			Name     string `json:"name"`
			Deferred bool   `json:"deferred"`
		} `json:"capabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	names := map[string]string{}
	for _, info := range infos {
		names[info.Service] = info.Capabilities.Name
	}
	if names["private"] != "stub-private" {
		t.Errorf("private generator = %q, want stub-private", names["private"])
	}
	if names["cloud"] != "stub-cloud" {
		t.Errorf("cloud generator = %q, want stub-cloud", names["cloud"])
	}
}
