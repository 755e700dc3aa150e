package s3

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store talking to an in-process fake bucket.
func NewMockForTests() *Store {
	bucket := &fakeBucket{objects: make(map[string]fakeObject)}
	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		Credentials:                aws.AnonymousCredentials{},
		HTTPClient:                 &http.Client{Transport: bucket},
		BaseEndpoint:               aws.String("http://fake-bucket.local"),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	})
	return &Store{client: client, bucket: "saves"}
}

// fakeBucket answers the object calls Store makes from a map: conditional PUT,
// GET, HEAD, DELETE and ListObjectsV2.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
	meta        map[string]string
	modified    time.Time
}

const metaHeaderPrefix = "x-amz-meta-"

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// path style: /<bucket>/<key>
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		return b.list(req.URL.Query().Get("prefix"))
	case req.Method == http.MethodPut:
		return b.put(req, key)
	case req.Method == http.MethodGet, req.Method == http.MethodHead:
		obj, ok := b.objects[key]
		if !ok {
			return reply(http.StatusNotFound, nil, errorBody("NoSuchKey")), nil
		}
		h := http.Header{}
		h.Set("Content-Length", strconv.Itoa(len(obj.body)))
		h.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		if obj.contentType != "" {
			h.Set("Content-Type", obj.contentType)
		}
		for k, v := range obj.meta {
			h.Set(metaHeaderPrefix+k, v)
		}
		if req.Method == http.MethodHead {
			return reply(http.StatusOK, h, nil), nil
		}
		return reply(http.StatusOK, h, obj.body), nil
	case req.Method == http.MethodDelete:
		delete(b.objects, key)
		return reply(http.StatusNoContent, nil, nil), nil
	}
	return reply(http.StatusNotImplemented, nil, errorBody("NotImplemented")), nil
}

func (b *fakeBucket) put(req *http.Request, key string) (*http.Response, error) {
	if _, exists := b.objects[key]; exists && req.Header.Get("If-None-Match") == "*" {
		return reply(http.StatusPreconditionFailed, nil, errorBody("PreconditionFailed")), nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string)
	for name, vals := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, metaHeaderPrefix) && len(vals) > 0 {
			meta[strings.TrimPrefix(lower, metaHeaderPrefix)] = vals[0]
		}
	}
	b.objects[key] = fakeObject{
		body:        body,
		contentType: req.Header.Get("Content-Type"),
		meta:        meta,
		modified:    time.Now().UTC().Truncate(time.Second),
	}
	return reply(http.StatusOK, nil, nil), nil
}

type listResult struct {
	XMLName     xml.Name    `xml:"ListBucketResult"`
	IsTruncated bool        `xml:"IsTruncated"`
	KeyCount    int         `xml:"KeyCount"`
	Contents    []listEntry `xml:"Contents"`
}

type listEntry struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

func (b *fakeBucket) list(prefix string) (*http.Response, error) {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	res := listResult{KeyCount: len(keys)}
	for _, k := range keys {
		obj := b.objects[k]
		res.Contents = append(res.Contents, listEntry{Key: k, Size: len(obj.body), LastModified: obj.modified.Format(time.RFC3339)})
	}
	raw, err := xml.Marshal(res)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Content-Type", "application/xml")
	return reply(http.StatusOK, h, raw), nil
}

func errorBody(code string) []byte {
	return []byte(fmt.Sprintf("<Error><Code>%s</Code><Message>%s</Message></Error>", code, code))
}

func reply(status int, h http.Header, body []byte) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}
