// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"

	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

// fakeS3 serves a single path-style object and honors the conditional
// request headers the client sends.
type fakeS3 struct {
	mu     sync.Mutex
	data   []byte
	etag   string
	serial int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/keys/ring.xml" {
		f.fail(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch r.Method {
	case http.MethodHead:
		if f.etag == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", f.etag)
		w.Header().Set("Content-Length", fmt.Sprint(len(f.data)))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if f.etag == "" {
			f.fail(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		if m := r.Header.Get("If-Match"); m != "" && m != f.etag {
			f.fail(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		w.Header().Set("ETag", f.etag)
		w.Write(f.data)

	case http.MethodPut:
		if r.Header.Get("If-None-Match") == "*" && f.etag != "" {
			f.fail(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		if m := r.Header.Get("If-Match"); m != "" && m != f.etag {
			f.fail(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.serial++
		f.data = body
		f.etag = fmt.Sprintf(`"etag-%d"`, f.serial)
		w.Header().Set("ETag", f.etag)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) fail(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func testClient(t *testing.T, f *fakeS3) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	sc := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		HTTPClient:                 srv.Client(),
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return NewFromS3Client(sc, "keys", "ring.xml")
}

func TestClient_roundTrip(t *testing.T) {
	ctx := context.Background()
	f := &fakeS3{}
	c := testClient(t, f)

	if _, err := c.Stat(ctx); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("wrong error for missing object: %v", err)
	}

	v1, err := c.Upload(ctx, []byte("<repository/>"), objectstore.IfAbsent())
	if err != nil {
		t.Fatalf("create failed: %s", err)
	}
	if _, err := c.Upload(ctx, []byte("<repository/>"), objectstore.IfAbsent()); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Errorf("second create: wrong error %v", err)
	}

	data, h, err := objectstore.Fetch(ctx, c)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	if diff := cmp.Diff(&objectstore.Handle{Container: "keys", Name: "ring.xml", Version: v1, Size: 13}, h); diff != "" {
		t.Errorf("wrong handle\n%s", diff)
	}
	if got := string(data); got != "<repository/>" {
		t.Errorf("wrong data %q", got)
	}

	if _, err := c.Upload(ctx, []byte("<repository><key/></repository>"), objectstore.IfVersion(v1)); err != nil {
		t.Fatalf("update failed: %s", err)
	}
	if _, err := c.Upload(ctx, []byte("<repository/>"), objectstore.IfVersion(v1)); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Errorf("stale update: wrong error %v", err)
	}
	if _, err := c.Download(ctx, h); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Errorf("download of a replaced version: wrong error %v", err)
	}
}

func TestMapError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want error
	}{
		"not found":   {&types.NotFound{}, objectstore.ErrNotFound},
		"no such key": {&types.NoSuchKey{}, objectstore.ErrNotFound},
		"precondition": {
			&smithy.GenericAPIError{Code: "PreconditionFailed"},
			objectstore.ErrPreconditionFailed,
		},
		"conditional conflict": {
			&smithy.GenericAPIError{Code: "ConditionalRequestConflict"},
			objectstore.ErrPreconditionFailed,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := mapError(tc.err); !errors.Is(got, tc.want) {
				t.Errorf("mapError(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}

	denied := &smithy.GenericAPIError{Code: "AccessDenied"}
	if got := mapError(denied); got != error(denied) {
		t.Errorf("AccessDenied was rewritten to %v", got)
	}
}
