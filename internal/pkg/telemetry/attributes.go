package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys shared across services.
const (
	AttrSessionID   = attribute.Key("map.session_id")
	AttrReason      = attribute.Key("map.reason")
	AttrResultCount = attribute.Key("result.count")
	AttrQuery       = attribute.Key("search.query")
	AttrAgencyID    = attribute.Key("agency.id")
	AttrAgencySlug  = attribute.Key("agency.slug")
	AttrCacheHit    = attribute.Key("cache.hit")
)
