//go:build integration

package tagsmith

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arawak/tagsmith/internal/config"
	"github.com/arawak/tagsmith/internal/httpapi"
	"github.com/arawak/tagsmith/internal/icons"
	"github.com/arawak/tagsmith/internal/store"
	"github.com/arawak/tagsmith/internal/tag"
	"github.com/arawak/tagsmith/internal/tagcache"
	"github.com/arawak/tagsmith/migrations"
)

func startMaria(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11.4",
		Env:          map[string]string{"MARIADB_ROOT_PASSWORD": "root", "MARIADB_DATABASE": "tagsmith", "MARIADB_USER": "tagsmith", "MARIADB_PASSWORD": "tagsmith"},
		ExposedPorts: []string{"3306/tcp"},
		WaitingFor:   wait.ForListeningPort("3306/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start mariadb: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	dsn := fmt.Sprintf("tagsmith:tagsmith@tcp(%s:%s)/tagsmith?parseTime=true&multiStatements=true", host, port.Port())
	return container, dsn
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()

	container, dsn := startMaria(t, ctx)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	if err := migrations.Up(dsn); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	if v, dirty, err := migrations.Version(dsn); err != nil || dirty || v != 1 {
		t.Fatalf("unexpected schema version %d dirty=%t err=%v", v, dirty, err)
	}

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	cfg := &config.Config{
		Bind:              ":0",
		DBDSN:             dsn,
		MaxTagTitleLength: config.DefaultMaxTagTitleLength,
		IconCacheTTL:      time.Minute,
		IconRoot:          root,
		MaxIconBytes:      config.DefaultMaxIconBytes,
		MaxIconPixels:     config.DefaultMaxIconPixels,
		AuthMode:          config.AuthNone,
		SwaggerUIPath:     "/swagger",
		OpenAPIPath:       "/openapi.yaml",
		MetricsPath:       "/metrics",
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	st := store.New(db)
	cache := tagcache.New(st, cfg.IconCacheTTL, logger)
	t.Cleanup(cache.Stop)

	normalizer, err := tag.NewNormalizer(cache, nil)
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	formatter, err := tag.NewFormatter(tag.NewRules([]string{"admin"}, nil), normalizer, cfg.MaxTagTitleLength)
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	ts := httptest.NewServer(httpapi.NewRouter(cfg, httpapi.Deps{
		Store:     st,
		Formatter: formatter,
		Cache:     cache,
		Icons:     icons.NewManager(root),
		Logger:    logger,
	}))
	t.Cleanup(ts.Close)

	// Before any icon exists the dictionary is empty and titles pass through.
	expectFormat(t, ts.URL, "java,golang", "java,golang")

	javaID := createTag(t, ts.URL, "Java")
	goID := createTag(t, ts.URL, "Go")
	uploadIcon(t, ts.URL, javaID)
	uploadIcon(t, ts.URL, goID)

	// Icon uploads invalidate the cache so the next request sees both icon tags.
	expectFormat(t, ts.URL, "java,golang,rust", "Java,Go,rust")

	setStatus(t, ts.URL, goID, store.TagStatusInvalid)
	expectFormat(t, ts.URL, "golang", "golang")

	listTags(t, ts.URL, 2)
	readyz(t, ts.URL+"/readyz")
}

func expectFormat(t *testing.T, base, raw, expect string) {
	t.Helper()
	b, _ := json.Marshal(httpapi.FormatRequest{Tags: raw})
	resp, err := http.Post(base+"/api/tags/format", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("format status %d body %s", resp.StatusCode, string(body))
	}
	var res httpapi.FormatResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode format: %v", err)
	}
	if res.Tags != expect {
		t.Fatalf("format %q => %q, expected %q", raw, res.Tags, expect)
	}
}

func createTag(t *testing.T, base, title string) int64 {
	t.Helper()
	b, _ := json.Marshal(httpapi.TagCreate{Title: title})
	resp, err := http.Post(base+"/api/tags", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("create status %d body %s", resp.StatusCode, string(body))
	}
	var created httpapi.Tag
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode tag: %v", err)
	}
	if created.Id == 0 || created.Title != title {
		t.Fatalf("unexpected tag %+v", created)
	}
	return created.Id
}

func uploadIcon(t *testing.T, base string, id int64) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile("file", "icon.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: uint8(id * 40), G: 100, B: 50, A: 255})
		}
	}
	if err := png.Encode(w, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/tags/%d/icon", base, id), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d body %s", resp.StatusCode, string(body))
	}

	icon, err := http.Get(fmt.Sprintf("%s/icons/%d", base, id))
	if err != nil {
		t.Fatalf("icon get: %v", err)
	}
	defer icon.Body.Close()
	if icon.StatusCode != http.StatusOK || icon.Header.Get("ETag") == "" {
		t.Fatalf("icon status %d etag %q", icon.StatusCode, icon.Header.Get("ETag"))
	}
}

func setStatus(t *testing.T, base string, id int64, status int) {
	t.Helper()
	b, _ := json.Marshal(map[string]int{"status": status})
	req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/tags/%d", base, id), bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("patch status %d body %s", resp.StatusCode, string(body))
	}
}

func listTags(t *testing.T, base string, expect int) {
	t.Helper()
	resp, err := http.Get(base + "/api/tags?page=1&pageSize=10")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	var res httpapi.TagListResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if res.Total != expect || len(res.Items) != expect {
		t.Fatalf("unexpected list %+v", res)
	}
}

func readyz(t *testing.T, url string) {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("readyz status %d body %s", resp.StatusCode, string(body))
	}
}
