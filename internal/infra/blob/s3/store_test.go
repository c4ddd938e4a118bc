package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"pramcore/internal/infra/blob/core"
)

// mockRoundTripper provides a tiny fake S3 subset sufficient to exercise the
// adapter without network access.
type mockRoundTripper struct{ state map[string]stored }

type stored struct {
	body        []byte
	contentType string
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		prefix := req.URL.Query().Get("prefix")
		cont := req.URL.Query().Get("continuation-token")
		var keys []string
		for k := range m.state {
			if prefix == "" || strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("<?xml version=\"1.0\"?><ListBucketResult>")
		if cont == "" && len(keys) > 1 {
			k := keys[0]
			st := m.state[k]
			b.WriteString("<IsTruncated>true</IsTruncated><NextContinuationToken>tok123</NextContinuationToken>")
			b.WriteString("<Contents><Key>")
			b.WriteString(k)
			b.WriteString("</Key><Size>")
			b.WriteString(fmt.Sprintf("%d", len(st.body)))
			b.WriteString("</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>")
		} else {
			b.WriteString("<IsTruncated>false</IsTruncated>")
			start := 0
			if cont != "" && len(keys) > 1 {
				start = 1
			}
			for _, k := range keys[start:] {
				st := m.state[k]
				b.WriteString("<Contents><Key>")
				b.WriteString(k)
				b.WriteString("</Key><Size>")
				b.WriteString(fmt.Sprintf("%d", len(st.body)))
				b.WriteString("</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>")
			}
		}
		b.WriteString("</ListBucketResult>")
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(b.String())), Header: http.Header{"Content-Type": {"application/xml"}}}, nil
	}
	switch req.Method {
	case http.MethodHead:
		if st, ok := m.state[key]; ok {
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(st.body))},
				"Content-Type":   {st.contentType},
				"Etag":           {"\"etag123\""},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			}}, nil
		}
		return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if _, exists := m.state[key]; !exists {
			ct := req.Header.Get("Content-Type")
			if dec, ok := decodeChunked(body); ok {
				body = dec
			}
			m.state[key] = stored{body: body, contentType: ct}
		}
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"Etag": {"\"etag\""}}}, nil
	case http.MethodGet:
		if st, ok := m.state[key]; ok {
			body := st.body
			if dec, ok := decodeChunked(body); ok {
				body = dec
			}
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(body))},
				"Content-Type":   {st.contentType},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
				"Etag":           {"\"etag\""},
			}}, nil
		}
		return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	case http.MethodDelete:
		delete(m.state, key)
		return &http.Response{StatusCode: 204, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: 501, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func newMockStore(t *testing.T) *Store {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string]stored)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
	return &Store{client: client, bucket: "test-bucket"}
}

func TestStoreMockedArtifactFlow(t *testing.T) {
	store := newMockStore(t)
	ctx := context.Background()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected DriverS3")
	}
	info, err := store.Put(ctx, "runs/sir/metrics.csv", bytes.NewReader([]byte("iter,m\n0,5\n")), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "runs/sir/metrics.csv" || info.ContentType != "text/csv" || info.Size < 5 {
		t.Fatalf("unexpected info %#v", info)
	}
	if info.ETag != "etag123" {
		t.Fatalf("etag must be unquoted, got %q", info.ETag)
	}
	if _, err := store.Put(ctx, "runs/sir/metrics.csv", bytes.NewReader([]byte("ignored")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}
	if _, err := store.Head(ctx, "runs/sir/metrics.csv"); err != nil {
		t.Fatalf("head: %v", err)
	}
	_, rc, err := store.Get(ctx, "runs/sir/metrics.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "iter,m\n0,5\n" {
		t.Fatalf("get mismatch: %q", string(data))
	}
	list, err := store.List(ctx, "runs/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if ok, err := store.Delete(ctx, "runs/sir/metrics.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "runs/sir/metrics.csv"); err == nil {
		t.Fatalf("deleted key must be gone")
	}
}

func TestStoreMockedMissingKeyErrors(t *testing.T) {
	store := newMockStore(t)
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); err == nil {
		t.Fatalf("expected head error for missing key")
	}
	if _, _, err := store.Get(ctx, "nope"); err == nil {
		t.Fatalf("expected get error for missing key")
	}
}

func TestStoreMockedListPaginationAndOrder(t *testing.T) {
	store := newMockStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "runs/b.csv", bytes.NewReader([]byte("b")), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := store.Put(ctx, "runs/a.csv", bytes.NewReader([]byte("a")), core.PutOptions{}); err != nil {
		t.Fatalf("put a: %v", err)
	}
	list, err := store.List(ctx, "runs/")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two items via pagination: %v %+v", err, list)
	}
	if list[0].Key != "runs/a.csv" || list[1].Key != "runs/b.csv" {
		t.Fatalf("list must be sorted by key: %+v", list)
	}
	if empty, err := store.List(ctx, "no-such-prefix/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, empty)
	}
}

func TestFromHeadNilBranches(t *testing.T) {
	store := newMockStore(t)
	info := store.fromHead("k", 10, nil, aws.String("\"etagval\""), map[string]string{"x": "y"}, nil)
	if info.ETag != "etagval" || info.ContentType != "" || info.Key != "k" || info.Size != 10 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Metadata["x"] != "y" {
		t.Fatalf("metadata must pass through: %+v", info.Metadata)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("missing bucket must fail")
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("PRAMCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("missing bucket env must fail")
	}
}

// decodeChunked unwraps the single-chunk aws-chunked framing the SDK uses for
// streamed uploads so the mock can compare stored bodies byte-for-byte.
func decodeChunked(b []byte) ([]byte, bool) {
	s := string(b)
	parts := strings.Split(s, "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 {
		return nil, false
	}
	if int64(len(parts[1])) != n {
		return nil, false
	}
	if parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}
