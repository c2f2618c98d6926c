// Package supabasetest 提供内存版 Supabase Storage 服务，供网关与服务层测试使用.
package supabasetest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// Server 内存 Supabase Storage.
type Server struct {
	*httptest.Server

	Key string

	mu      sync.Mutex
	objects map[string]object
	fail    map[string]int
}

type object struct {
	data []byte
	mime string
}

// NewServer 启动测试服务，key 为要求的 service role key.
func NewServer(key string) *Server {
	s := &Server{
		Key:     key,
		objects: map[string]object{},
		fail:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))

	return s
}

// FailNext 让下一次指定操作（upload/sign/delete/download）返回 status.
func (s *Server) FailNext(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fail[op] = status
}

// Object 返回存储的对象内容.
func (s *Server) Object(bucketKey string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[bucketKey]

	return o.data, o.mime, ok
}

// Len 返回对象数量.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

func (s *Server) takeFailure(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.fail[op]
	delete(s.fail, op)

	return status
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	p, err := url.PathUnescape(r.URL.EscapedPath())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case strings.HasPrefix(p, "/storage/v1/object/sign/") && r.Method == http.MethodGet:
		s.download(w, r, strings.TrimPrefix(p, "/storage/v1/object/sign/"))
	case !s.authorized(r):
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	case strings.HasPrefix(p, "/storage/v1/object/sign/") && r.Method == http.MethodPost:
		s.sign(w, r, strings.TrimPrefix(p, "/storage/v1/object/sign/"))
	case strings.HasPrefix(p, "/storage/v1/object/") && r.Method == http.MethodPost:
		s.upload(w, r, strings.TrimPrefix(p, "/storage/v1/object/"))
	case strings.HasPrefix(p, "/storage/v1/object/") && r.Method == http.MethodDelete:
		s.remove(w, strings.TrimPrefix(p, "/storage/v1/object/"))
	case strings.HasPrefix(p, "/storage/v1/bucket/") && r.Method == http.MethodGet:
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"id":"bucket"}`)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.Key
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, bucketKey string) {
	if status := s.takeFailure("upload"); status != 0 {
		http.Error(w, `{"error":"upload rejected"}`, status)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.objects[bucketKey] = object{data: data, mime: r.Header.Get("Content-Type")}
	s.mu.Unlock()

	_, _ = fmt.Fprintf(w, `{"Key":%q}`, bucketKey)
}

func (s *Server) sign(w http.ResponseWriter, r *http.Request, bucketKey string) {
	if status := s.takeFailure("sign"); status != 0 {
		http.Error(w, `{"error":"sign rejected"}`, status)
		return
	}

	var body struct {
		ExpiresIn int `json:"expiresIn"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body); err != nil || body.ExpiresIn <= 0 {
		http.Error(w, `{"error":"invalid expiresIn"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, ok := s.objects[bucketKey]
	s.mu.Unlock()

	if !ok {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	signed := "/object/sign/" + escapePath(bucketKey) + fmt.Sprintf("?token=tok-%d", body.ExpiresIn)
	_, _ = fmt.Fprintf(w, `{"signedURL":%q}`, signed)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, bucketKey string) {
	if status := s.takeFailure("download"); status != 0 {
		http.Error(w, "download rejected", status)
		return
	}

	if !strings.HasPrefix(r.URL.Query().Get("token"), "tok-") {
		http.Error(w, "invalid token", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	o, ok := s.objects[bucketKey]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", o.mime)
	_, _ = w.Write(o.data)
}

func (s *Server) remove(w http.ResponseWriter, bucketKey string) {
	if status := s.takeFailure("delete"); status != 0 {
		http.Error(w, `{"error":"delete rejected"}`, status)
		return
	}

	s.mu.Lock()
	_, ok := s.objects[bucketKey]
	delete(s.objects, bucketKey)
	s.mu.Unlock()

	if !ok {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	_, _ = io.WriteString(w, `{"message":"deleted"}`)
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}
