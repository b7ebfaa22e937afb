package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// NewMockForTests returns a Store whose HTTP transport is an in-process fake
// bucket. It understands the requests issued by Store and nothing more.
func NewMockForTests() *Store {
	store, _ := newMock(Config{Bucket: "ledger-snapshots", PathStyle: true, Endpoint: "https://s3.mock.local"}, 0)
	return store
}

func newMock(cfg Config, pageSize int) (*Store, *fakeBucket) {
	bucket := &fakeBucket{objects: make(map[string]fakeObject), pageSize: pageSize}
	awsCfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIDLEDGER", "secret", "")),
		config.WithRetryMaxAttempts(1),
	)
	return newWithConfig(awsCfg, cfg, &http.Client{Transport: bucket}), bucket
}

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeBucket serves path-style requests of the form /<bucket>/<key>.
type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	pageSize int
	requests []string
}

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req.Method+" "+req.URL.Path)

	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	query := req.URL.Query()
	switch {
	case req.Method == http.MethodGet && query.Get("list-type") == "2":
		return b.list(query.Get("prefix"), query.Get("continuation-token")), nil
	case req.Method == http.MethodHead:
		obj, ok := b.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, obj.headers(), nil), nil
	case req.Method == http.MethodGet:
		obj, ok := b.objects[key]
		if !ok {
			body := []byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return respond(http.StatusNotFound, http.Header{"Content-Type": {"application/xml"}}, body), nil
		}
		return respond(http.StatusOK, obj.headers(), obj.body), nil
	case req.Method == http.MethodPut:
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			raw = decodeAWSChunked(raw)
		}
		meta := map[string]string{}
		for name, values := range req.Header {
			if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") {
				meta[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
			}
		}
		obj := fakeObject{body: raw, contentType: req.Header.Get("Content-Type"), metadata: meta, modified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		b.objects[key] = obj
		h := http.Header{}
		h.Set("ETag", obj.etag())
		return respond(http.StatusOK, h, nil), nil
	case req.Method == http.MethodDelete:
		delete(b.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (b *fakeBucket) list(prefix, token string) *http.Response {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	truncated := b.pageSize > 0 && len(keys) > b.pageSize
	if truncated {
		keys = keys[:b.pageSize]
	}
	var buf strings.Builder
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	fmt.Fprintf(&buf, "<IsTruncated>%t</IsTruncated>", truncated)
	if truncated {
		fmt.Fprintf(&buf, "<NextContinuationToken>%s</NextContinuationToken>", keys[len(keys)-1])
	}
	for _, k := range keys {
		obj := b.objects[k]
		fmt.Fprintf(&buf, "<Contents><Key>%s</Key><Size>%d</Size><ETag>%s</ETag><LastModified>%s</LastModified></Contents>",
			k, len(obj.body), obj.etag(), obj.modified.Format(time.RFC3339))
	}
	buf.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(buf.String()))
}

func (o fakeObject) etag() string {
	sum := md5.Sum(o.body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (o fakeObject) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Length", strconv.Itoa(len(o.body)))
	h.Set("ETag", o.etag())
	h.Set("Last-Modified", o.modified.Format(http.TimeFormat))
	if o.contentType != "" {
		h.Set("Content-Type", o.contentType)
	}
	for k, v := range o.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func respond(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// decodeAWSChunked strips aws-chunked framing: "<hex size>[;ext]\r\n<data>\r\n"
// repeated until a zero-size chunk, optionally followed by trailers.
func decodeAWSChunked(raw []byte) []byte {
	var out []byte
	for len(raw) > 0 {
		line, rest, ok := bytes.Cut(raw, []byte("\r\n"))
		if !ok {
			return out
		}
		sizeField, _, _ := strings.Cut(string(line), ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil || size == 0 || int64(len(rest)) < size {
			return out
		}
		out = append(out, rest[:size]...)
		raw = bytes.TrimPrefix(rest[size:], []byte("\r\n"))
	}
	return out
}
