// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package httpclient builds the HTTP clients the object store adapters hand
// to their SDKs.
package httpclient

import (
	"context"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/fvoncina/dataprotection-gcs/version"
)

// New returns the DefaultPooledClient from the cleanhttp package that will
// also send the keyring User-Agent string.
//
// If the given context has a recording OpenTelemetry span then requests made
// with the returned client produce client spans too, parented to whatever
// span is in the context of each individual request.
func New(ctx context.Context) *http.Client {
	cli := cleanhttp.DefaultPooledClient()
	cli.Transport = &userAgentRoundTripper{
		userAgent: UserAgent(version.String()),
		inner:     cli.Transport,
	}

	if span := otelTrace.SpanFromContext(ctx); span != nil && span.IsRecording() {
		// Without an active trace every request would start a trace of its
		// own, which is just noise for whoever consumes them.
		cli.Transport = otelhttp.NewTransport(cli.Transport)
	}

	return cli
}
