package finsync

import (
	"net/http"
	"time"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

// Resource classes served by the dashboard backend.
const (
	ClassTransactions        = "transactions"
	ClassCategories          = "categories"
	ClassDashboards          = "dashboards"
	ClassAnalysisTimePeriods = "analysis-time-periods"

	// CollectionUncategorised lists transactions without a category; the
	// filter is applied server-side.
	CollectionUncategorised = "uncategorised"
)

// Options configure a Session. Only BaseURL is required; others have sensible
// defaults.
type Options struct {
	// Required
	BaseURL string // e.g. "http://localhost:8080"

	Prefix       string         // API path prefix; "" => "/api"
	HTTPClient   *http.Client   // nil => a client with Timeout
	Timeout      time.Duration  // used only when HTTPClient is nil; 0 => 30s
	Format       string         // wire format, see codec.For; "" => JSON
	MaxBody      int            // max decoded response size; 0 => unlimited
	PageSize     int            // 0 => DefaultPageSize
	DateLocation *time.Location // date attributes are midnight here; nil => time.Local

	// Schemas override or extend DefaultSchemas by class.
	Schemas map[string]jsonapi.Schema

	Shared *Shared // optional; not closed by the Session
	Logger Logger  // nil => NopLogger
	Hooks  Hooks   // nil => NopHooks
}

const defaultTimeout = 30 * time.Second

// DefaultSchemas returns the attribute schemas of the known classes.
func DefaultSchemas() map[string]jsonapi.Schema {
	return map[string]jsonapi.Schema{
		ClassTransactions: {
			Type: ClassTransactions,
			Fields: map[string]jsonapi.Kind{
				"date":        jsonapi.KindDate,
				"description": jsonapi.KindString,
				"amount":      jsonapi.KindNumber,
				"direction":   jsonapi.KindString,
				"initiator":   jsonapi.KindString,
				"title":       jsonapi.KindString,
			},
		},
		ClassCategories: {
			Type:   ClassCategories,
			Fields: map[string]jsonapi.Kind{"title": jsonapi.KindString},
		},
	}
}
