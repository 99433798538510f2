// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package strategy_test

import (
	"context"
	"testing"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/fetch"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy"
	_ "github.com/Z-zoe8013/ZTOOLBOX/internal/strategy/netcut"
	_ "github.com/Z-zoe8013/ZTOOLBOX/internal/strategy/textdb"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, fetch.Request) fetch.Response {
	return fetch.Response{Class: fetch.ClassNetworkError}
}

type fixedStrategy struct{}

func (fixedStrategy) Name() string              { return "fixed" }
func (fixedStrategy) RetryDelay() time.Duration { return 0 }
func (fixedStrategy) Attempt(context.Context, settings.Credentials) (string, error) {
	return "fixed", nil
}

func TestNames_IncludesBuiltins(t *testing.T) {
	names := strategy.Names()
	assert.Contains(t, names, "textdb")
	assert.Contains(t, names, "netcut")
}

func TestNew_Builtins(t *testing.T) {
	for _, name := range []string{"textdb", "netcut"} {
		t.Run(name, func(t *testing.T) {
			s, err := strategy.New(name, strategy.Options{}, nopFetcher{})
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())
			assert.Positive(t, s.RetryDelay())
		})
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := strategy.New("pastebin", strategy.Options{}, nopFetcher{})
	require.Error(t, err)
	assert.True(t, cliperr.IsInvalidInput(err))
}

func TestNew_RequiresFetcher(t *testing.T) {
	_, err := strategy.New("textdb", strategy.Options{}, nil)
	require.Error(t, err)
	assert.True(t, cliperr.IsInvalidInput(err))
}

func TestRegister_Custom(t *testing.T) {
	strategy.Register("fixed", func(strategy.Options, strategy.Fetcher) (strategy.Strategy, error) {
		return fixedStrategy{}, nil
	})

	s, err := strategy.New("fixed", strategy.Options{}, nopFetcher{})
	require.NoError(t, err)
	out, err := s.Attempt(context.Background(), settings.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}
