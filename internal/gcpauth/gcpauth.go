// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package gcpauth turns the credential settings shared by every Google Cloud
// integration into client options for the Google API client libraries.
package gcpauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/oauth2"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"

	"github.com/fvoncina/dataprotection-gcs/internal/httpclient"
	"github.com/fvoncina/dataprotection-gcs/version"
)

// Credentials selects how to authenticate to Google Cloud. With every field
// empty, Application Default Credentials are used.
type Credentials struct {
	// Credentials is a service account key, either as JSON or as the path
	// of a file containing it.
	Credentials string `hcl:"credentials,optional"`
	AccessToken string `hcl:"access_token,optional"`

	ImpersonateServiceAccount          string   `hcl:"impersonate_service_account,optional"`
	ImpersonateServiceAccountDelegates []string `hcl:"impersonate_service_account_delegates,optional"`
}

// WithEnvDefaults returns a copy of c where unset fields are filled from the
// usual Google environment variables.
func (c Credentials) WithEnvDefaults() Credentials {
	c.Credentials = stringAttrEnvFallback(c.Credentials, "GOOGLE_CREDENTIALS")
	c.AccessToken = stringAttrEnvFallback(c.AccessToken, "GOOGLE_OAUTH_ACCESS_TOKEN")
	c.ImpersonateServiceAccount = stringAttrEnvFallback(c.ImpersonateServiceAccount, "GOOGLE_IMPERSONATE_SERVICE_ACCOUNT")
	return c
}

// ClientOptions returns the options to pass to a Google API client
// constructor. scopes is only used when impersonating a service account.
func (c Credentials) ClientOptions(ctx context.Context, scopes ...string) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	var credOptions []option.ClientOption

	if c.AccessToken != "" {
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: c.AccessToken,
		})
		credOptions = append(credOptions, option.WithTokenSource(tokenSource))
	} else if c.Credentials != "" {
		contents, err := ReadPathOrContents(c.Credentials)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		if !json.Valid([]byte(contents)) {
			return nil, errors.New("the string provided in credentials is neither valid json nor a valid file path")
		}
		credOptions = append(credOptions, option.WithCredentialsJSON([]byte(contents)))
	}

	if c.ImpersonateServiceAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: c.ImpersonateServiceAccount,
			Scopes:          scopes,
			Delegates:       c.ImpersonateServiceAccountDelegates,
		}, credOptions...)
		if err != nil {
			return nil, fmt.Errorf("impersonating %s: %w", c.ImpersonateServiceAccount, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	} else {
		opts = append(opts, credOptions...)
	}

	opts = append(opts, option.WithUserAgent(httpclient.UserAgent(version.String())))
	return opts, nil
}

func stringAttrEnvFallback(val string, env string) string {
	if val != "" {
		return val
	}
	return os.Getenv(env)
}

// ReadPathOrContents loads the file named by poc if there is one, and
// otherwise returns poc itself as the desired contents. A leading ~ is
// expanded to the user's home directory.
func ReadPathOrContents(poc string) (string, error) {
	if len(poc) == 0 {
		return poc, nil
	}

	path := poc
	if path[0] == '~' {
		var err error
		path, err = homedir.Expand(path)
		if err != nil {
			return path, err
		}
	}

	if _, err := os.Stat(path); err == nil {
		contents, err := os.ReadFile(path)
		if err != nil {
			return string(contents), err
		}
		return string(contents), nil
	}

	return poc, nil
}
