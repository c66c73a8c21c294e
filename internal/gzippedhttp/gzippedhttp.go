// Package gzippedhttp adds transparent gzip handling to the HTTP
// surface: responses are compressed for clients that accept gzip, and
// gzip-encoded request bodies are decompressed before handlers see them.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// DecompressingReader reads gzip-compressed data from a request body
// and yields the plain bytes.
type DecompressingReader struct {
	body   io.ReadCloser
	gzBody *gzip.Reader
}

// NewDecompressingReader wraps a gzip-encoded request body.
func NewDecompressingReader(requestBody io.ReadCloser) (*DecompressingReader, error) {
	gzBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &DecompressingReader{
		body:   requestBody,
		gzBody: gzBody,
	}, nil
}

// Read reads decompressed data from the underlying gzip stream.
func (r DecompressingReader) Read(p []byte) (n int, err error) {
	return r.gzBody.Read(p)
}

// Close closes both the gzip reader and the wrapped body.
func (r *DecompressingReader) Close() error {
	if err := r.body.Close(); err != nil {
		return err
	}
	return r.gzBody.Close()
}

// CompressingResponseWriter wraps http.ResponseWriter and gzips the
// response body.
type CompressingResponseWriter struct {
	response http.ResponseWriter
	gz       *gzip.Writer
}

// NewCompressingResponseWriter takes a gzip writer from the pool and
// binds it to the given response.
func NewCompressingResponseWriter(response http.ResponseWriter) *CompressingResponseWriter {
	gz := gzipWriterPool.Get().(*gzip.Writer)
	gz.Reset(response)
	return &CompressingResponseWriter{
		response: response,
		gz:       gz,
	}
}

// Close flushes the gzip stream and returns the writer to the pool.
func (w *CompressingResponseWriter) Close() error {
	if err := w.gz.Close(); err != nil {
		return err
	}
	gzipWriterPool.Put(w.gz)
	return nil
}

// WriteHeader writes the status code, marking successful responses as
// gzip-encoded.
func (w *CompressingResponseWriter) WriteHeader(statusCode int) {
	if statusCode < 300 {
		w.response.Header().Set("Content-Encoding", "gzip")
	}
	w.response.WriteHeader(statusCode)
}

// Write writes gzip-compressed data to the response body.
func (w *CompressingResponseWriter) Write(p []byte) (int, error) {
	return w.gz.Write(p)
}

// Header returns the headers of the wrapped response.
func (w *CompressingResponseWriter) Header() http.Header {
	return w.response.Header()
}

// GzipResponse compresses the response when the client's
// "Accept-Encoding" header allows gzip.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		finalResponse := response

		if strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			compressing := NewCompressingResponseWriter(response)
			finalResponse = compressing
			defer compressing.Close()
		}

		h.ServeHTTP(finalResponse, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest replaces a gzip-encoded request body with a
// decompressing reader before the next handler runs.
func UngzipRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			decompressing, err := NewDecompressingReader(request.Body)
			if err != nil {
				response.WriteHeader(http.StatusInternalServerError)
				return
			}
			request.Body = decompressing
			defer decompressing.Close()
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
