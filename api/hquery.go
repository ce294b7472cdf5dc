// Package api provides the main entry point for the hquery API.
// It re-exports the core interfaces and types from the sub-packages.
package api

import (
	hqhttp "github.com/Humphrey-He/hquery/api/http"
	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/codec"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/mutation"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Key identifies one cached query.
// It is re-exported from the querykey package.
type Key = querykey.Key

// Params are the parameters of a key.
// It is re-exported from the querykey package.
type Params = querykey.Params

// Client is the query cache.
// It is re-exported from the cache package.
type Client = cache.Client

// Config is the configuration of one query pattern.
// It is re-exported from the cache package.
type Config = cache.Config

// Snapshot is the consumer view of one entry.
// It is re-exported from the cache package.
type Snapshot = cache.Snapshot

// Subscription is one consumer of a key.
// It is re-exported from the cache package.
type Subscription = cache.Subscription

// RetryPolicy decides which failures are retried.
// It is re-exported from the cache package.
type RetryPolicy = cache.RetryPolicy

// Loader fetches the data of a key.
// It is re-exported from the loader package.
type Loader = loader.Loader

// Codec encodes request and response bodies.
// It is re-exported from the codec package.
type Codec = codec.Codec

// Strategy selects precise or blunt invalidation.
// It is re-exported from the mutation package.
type Strategy = mutation.Strategy

// Invalidator is what a mutation needs from the cache.
// It is re-exported from the mutation package.
type Invalidator = mutation.Invalidator

// APIError is a classified remote failure.
// It is re-exported from the errors package.
type APIError = errors.APIError

// Inspector serves cache state over HTTP.
// It is re-exported from the http package.
type Inspector = hqhttp.Inspector

// Re-export constants.
const (
	StaleForever = cache.StaleForever
	GCForever    = cache.GCForever
	Precise      = mutation.Precise
	Blunt        = mutation.Blunt
)

// Re-export constructors and options from the cache package.
var (
	// NewKey builds a key from segments.
	NewKey = querykey.New

	// ParseKey decodes the canonical JSON form of a key.
	ParseKey = querykey.Parse

	// NewClient creates a query cache.
	NewClient = cache.NewClient

	// NewDefaultConfig returns the application defaults.
	NewDefaultConfig = cache.NewDefaultConfig

	WithStaleTime            = cache.WithStaleTime
	WithGCTime               = cache.WithGCTime
	WithRefetchOnMount       = cache.WithRefetchOnMount
	WithRefetchOnWindowFocus = cache.WithRefetchOnWindowFocus
	WithRefetchOnReconnect   = cache.WithRefetchOnReconnect
	WithRefetchInterval      = cache.WithRefetchInterval
	WithRetry                = cache.WithRetry
	WithEnabled              = cache.WithEnabled

	WithDefaults  = cache.WithDefaults
	WithProfile   = cache.WithProfile
	WithLoaders   = cache.WithLoaders
	WithLogger    = cache.WithLogger
	WithMetrics   = cache.WithMetrics
	WithClock     = cache.WithClock
	NewRegistry   = loader.NewRegistry
	NewInspector  = hqhttp.NewInspector
	NewHTTPServer = hqhttp.NewServer
)

// Re-export error checking functions from the errors package.
var (
	IsAuth        = errors.IsAuth
	IsNotFound    = errors.IsNotFound
	IsValidation  = errors.IsValidation
	IsRateLimited = errors.IsRateLimited
	IsServer      = errors.IsServer
	IsNetwork     = errors.IsNetwork
	IsClosed      = errors.IsClosed
	IsCleared     = errors.IsCleared
)
